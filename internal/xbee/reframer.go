package xbee

import (
	"bufio"
	"errors"
	"io"
	"log/slog"

	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/metrics"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// Reframer reads API frames from a radio byte stream and returns the
// received payloads. It implements radio.Reframer.
type Reframer struct {
	r       *bufio.Reader
	log     *slog.Logger
	metrics *metrics.Metrics
}

var _ radio.Reframer = (*Reframer)(nil)

// NewReframer creates a reframer over src. m may be nil.
func NewReframer(src io.Reader, m *metrics.Metrics) *Reframer {
	return &Reframer{
		r:       bufio.NewReaderSize(src, 4096),
		log:     logging.WithComponent("xbee-rx"),
		metrics: m,
	}
}

// ReceiveFrame blocks until a frame with a payload arrives. Corrupt frames
// and status frames are logged and skipped; read errors are returned.
func (r *Reframer) ReceiveFrame() (radio.Frame, error) {
	for {
		f, err := ReadAPIFrame(r.r)
		if err != nil {
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrShortFrame) {
				r.log.Warn("discarding corrupt frame", "error", err)
				r.metrics.RecordFrameError("corrupt")
				continue
			}
			return radio.Frame{}, err
		}

		switch f.Type {
		case FrameReceivePacket, FrameRx64:
			frame, err := ParseReceive(f)
			if err != nil {
				r.log.Warn("discarding malformed receive frame", "error", err)
				r.metrics.RecordFrameError("malformed")
				continue
			}
			return frame, nil

		case FrameTxStatus, FrameTxStatusLegacy:
			if status := txStatus(f); status != 0 {
				r.log.Debug("transmit not acknowledged", "status", status)
			}

		case FrameModemStatus:
			if len(f.Data) > 0 {
				r.log.Info("modem status", "status", f.Data[0])
			}

		default:
			r.log.Debug("ignoring frame", "type", f.Type, "size", len(f.Data))
			r.metrics.RecordFrameError("unhandled")
		}
	}
}

// txStatus extracts the delivery status byte of a transmit status frame.
func txStatus(f APIFrame) byte {
	switch {
	case f.Type == FrameTxStatus && len(f.Data) >= 5:
		// frame id(1) dest16(2) retries(1) delivery status(1) discovery(1)
		return f.Data[4]
	case f.Type == FrameTxStatusLegacy && len(f.Data) >= 2:
		return f.Data[1]
	}
	return 0
}
