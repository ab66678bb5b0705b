package xbee

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/metrics"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// Transmitter drains a transmit queue onto the radio's serial line.
type Transmitter struct {
	w          io.Writer
	queue      *radio.Queue
	maxPayload int
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewTransmitter creates a transmitter writing to w. Payloads longer than
// maxPayload are dropped; zero means no limit beyond the frame format's.
func NewTransmitter(w io.Writer, queue *radio.Queue, maxPayload int, m *metrics.Metrics) *Transmitter {
	return &Transmitter{
		w:          w,
		queue:      queue,
		maxPayload: maxPayload,
		log:        logging.WithComponent("xbee-tx"),
		metrics:    m,
	}
}

// Run writes queued jobs until ctx is cancelled or a write fails. The queue
// is closed on return, so producers see radio.ErrQueueClosed afterwards.
func (t *Transmitter) Run(ctx context.Context) error {
	defer t.queue.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-t.queue.Jobs():
			if err := t.send(job); err != nil {
				return err
			}
		}
	}
}

// send writes one job. Oversized payloads are dropped, not fragmented.
func (t *Transmitter) send(job radio.TxJob) error {
	if t.maxPayload > 0 && len(job.Payload) > t.maxPayload {
		t.log.Warn("payload exceeds radio frame limit; dropping",
			"size", len(job.Payload), "limit", t.maxPayload, "dest", job.Dest.String())
		t.metrics.RecordDropped(metrics.DirectionOutbound, metrics.ReasonOversize)
		return nil
	}

	encoded, err := TxRequest(0, job.Dest, job.Payload).Encode()
	if err != nil {
		t.log.Warn("cannot encode transmit request; dropping", "error", err)
		t.metrics.RecordDropped(metrics.DirectionOutbound, metrics.ReasonOversize)
		return nil
	}

	logging.Trace(t.log, "frame out", "dest", job.Dest.String(), logging.Packet(encoded))

	if _, err := t.w.Write(encoded); err != nil {
		return fmt.Errorf("write to radio: %w", err)
	}
	t.metrics.RecordFrameWritten()
	return nil
}
