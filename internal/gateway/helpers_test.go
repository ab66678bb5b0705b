package gateway

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/radiogate/internal/device"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// fakeDevice is an in-memory TUN device.
type fakeDevice struct {
	name      string
	reads     chan []byte
	readErr   error
	writeErr  error
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{
		name:   name,
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (d *fakeDevice) Name() string { return d.name }
func (d *fakeDevice) MTU() int     { return 1500 }

func (d *fakeDevice) Read(buf []byte) (int, error) {
	select {
	case p, ok := <-d.reads:
		if !ok {
			if d.readErr != nil {
				return 0, d.readErr
			}
			return 0, io.EOF
		}
		return copy(buf, p), nil
	case <-d.closed:
		return 0, device.ErrDeviceClosed
	}
}

func (d *fakeDevice) Write(buf []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.written = append(d.written, append([]byte(nil), buf...))
	return len(buf), nil
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *fakeDevice) Written() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.written...)
}

// fakeReframer hands out queued frames, then fails with err (io.EOF by
// default) once the channel is closed.
type fakeReframer struct {
	frames chan radio.Frame
	err    error
}

func newFakeReframer() *fakeReframer {
	return &fakeReframer{frames: make(chan radio.Frame, 16)}
}

func (r *fakeReframer) ReceiveFrame() (radio.Frame, error) {
	f, ok := <-r.frames
	if !ok {
		if r.err != nil {
			return radio.Frame{}, r.err
		}
		return radio.Frame{}, io.EOF
	}
	return f, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func udpPayload() gopacket.Payload {
	return gopacket.Payload([]byte("hello mesh"))
}

// ipv4Packet builds a UDP-over-IPv4 packet.
func ipv4Packet(t *testing.T, src, dst string) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 5353}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, udpPayload()))
	return buf.Bytes()
}

// ipv6Packet builds a UDP-over-IPv6 packet.
func ipv6Packet(t *testing.T, src, dst string) []byte {
	t.Helper()

	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 5353}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, udpPayload()))
	return buf.Bytes()
}
