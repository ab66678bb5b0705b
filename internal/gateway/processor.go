package gateway

import (
	"errors"
	"fmt"

	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/metrics"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// HostToMesh reads packets from the TUN device and queues them for the
// radio until a device read fails or the transmit queue is closed.
func (g *Gateway) HostToMesh() error {
	buf := make([]byte, MaxPacketSize)

	for {
		n, err := g.dev.Read(buf)
		if err != nil {
			return fmt.Errorf("read from %s: %w", g.name, err)
		}
		if err := g.forwardToRadio(buf[:n]); err != nil {
			g.outLog.Error("transmit queue unavailable", "error", err)
			return err
		}
	}
}

// forwardToRadio handles one packet read from the device. Only a closed
// transmit queue is reported as an error.
func (g *Gateway) forwardToRadio(packet []byte) error {
	log := g.outLog
	logging.Trace(log, "packet in", logging.Packet(packet))

	dst, err := DestinationIP(packet)
	if err != nil {
		reason := metrics.ReasonParseError
		if errors.Is(err, ErrNoIPLayer) {
			reason = metrics.ReasonNoIPLayer
			log.Warn("unable to get IP header from packet; discarding", "size", len(packet))
		} else {
			log.Warn("error parsing packet; discarding", "size", len(packet), "error", err)
		}
		g.metrics.RecordUnparsed(metrics.DirectionOutbound)
		g.metrics.RecordDropped(metrics.DirectionOutbound, reason)
		return nil
	}

	dest, learned := g.cache.Lookup(dst)
	g.metrics.RecordResolution(learned)
	log.Debug("resolved destination", "ip", dst, "mesh_addr", dest.String(), "learned", learned)

	// The read buffer is reused, so the job needs its own copy.
	payload := make([]byte, len(packet))
	copy(payload, packet)

	err = g.queue.TrySubmit(radio.TxJob{Dest: dest, Payload: payload})
	switch {
	case err == nil:
		g.metrics.RecordForwarded(metrics.DirectionOutbound, len(payload))
		return nil
	case errors.Is(err, radio.ErrQueueFull):
		log.Debug("dropped packet due to full transmit queue", "ip", dst, "size", len(payload))
		g.metrics.RecordDropped(metrics.DirectionOutbound, metrics.ReasonQueueFull)
		return nil
	default:
		return fmt.Errorf("submit transmit job: %w", err)
	}
}

// MeshToHost reads frames from the radio and writes their payloads to the
// TUN device until the reframer or a device write fails.
func (g *Gateway) MeshToHost(reframer radio.Reframer) error {
	for {
		frame, err := reframer.ReceiveFrame()
		if err != nil {
			return fmt.Errorf("receive frame: %w", err)
		}
		if err := g.deliverToHost(frame); err != nil {
			return err
		}
	}
}

// deliverToHost learns the sender of frame and writes its payload to the
// device. Payloads that are not IP are still written.
func (g *Gateway) deliverToHost(frame radio.Frame) error {
	log := g.inLog
	logging.Trace(log, "frame in", "from", frame.Src.String(), logging.Packet(frame.Payload))

	src, err := SourceIP(frame.Payload)
	if err != nil {
		log.Warn("frame payload is not valid IPv4 or IPv6; forwarding anyway",
			"from", frame.Src.String(), "size", len(frame.Payload), "error", err)
		g.metrics.RecordUnparsed(metrics.DirectionInbound)
	} else if !g.cache.BroadcastEverything() {
		g.cache.Record(src, frame.Src)
		g.metrics.RecordLearned()
		log.Debug("learned sender", "ip", src, "mesh_addr", frame.Src.String())
	}

	if _, err := g.dev.Write(frame.Payload); err != nil {
		return fmt.Errorf("write to %s: %w", g.name, err)
	}
	g.metrics.RecordForwarded(metrics.DirectionInbound, len(frame.Payload))
	return nil
}
