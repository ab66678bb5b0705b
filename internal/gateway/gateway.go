// Package gateway moves packets between a TUN device and a mesh radio link.
//
// Two loops run side by side. HostToMesh reads IP packets from the device,
// resolves the destination IP to a mesh address and queues a transmit job.
// MeshToHost reads frames from the radio, learns which mesh node each source
// IP lives behind, and writes the payload to the device.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rennerdo30/radiogate/internal/addrcache"
	"github.com/rennerdo30/radiogate/internal/device"
	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/metrics"
	"github.com/rennerdo30/radiogate/internal/radio"
)

// MaxPacketSize is the size of the TUN read buffer. It fits jumbo frames
// even though the radio payload limit is far smaller.
const MaxPacketSize = 9100

// Config holds the gateway identity.
type Config struct {
	// LocalAddr is this node's mesh address.
	LocalAddr radio.Addr

	// BroadcastEverything sends every packet to radio.Broadcast and turns
	// off address learning.
	BroadcastEverything bool

	// CacheLifetime is how long a learned address stays usable.
	CacheLifetime time.Duration

	// SweepInterval, when positive, periodically removes stale cache
	// entries while Run is active.
	SweepInterval time.Duration
}

// Gateway is the state shared by both packet loops.
type Gateway struct {
	cfg     Config
	name    string
	dev     device.NetworkDevice
	cache   *addrcache.Cache
	queue   *radio.Queue
	metrics *metrics.Metrics
	log     *slog.Logger
	outLog  *slog.Logger
	inLog   *slog.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records traffic counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// WithClock sets the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// createTUN is swapped out in tests.
var createTUN = device.CreateTUN

// Open creates the TUN device described by devCfg and builds a gateway on
// top of it. The device is closed again if construction fails.
func Open(cfg Config, devCfg device.Config, queue *radio.Queue, opts ...Option) (*Gateway, error) {
	dev, err := createTUN(devCfg)
	if err != nil {
		return nil, fmt.Errorf("create TUN device %q: %w", devCfg.Name, err)
	}

	g, err := New(cfg, dev, queue, opts...)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return g, nil
}

// New builds a gateway around an already open device. Outbound jobs are
// submitted to queue, which an external transmitter drains.
func New(cfg Config, dev device.NetworkDevice, queue *radio.Queue, opts ...Option) (*Gateway, error) {
	if dev == nil {
		return nil, errors.New("gateway: nil device")
	}
	if queue == nil {
		return nil, errors.New("gateway: nil transmit queue")
	}

	g := &Gateway{
		cfg:   cfg,
		name:  dev.Name(),
		dev:   dev,
		queue: queue,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logging.WithComponent("gateway")
	}
	g.outLog = g.log.With("direction", "tun->radio")
	g.inLog = g.log.With("direction", "radio->tun")

	g.cache = addrcache.New(addrcache.Config{
		Lifetime:            cfg.CacheLifetime,
		BroadcastEverything: cfg.BroadcastEverything,
		Now:                 g.now,
	})
	g.cfg.CacheLifetime = g.cache.Lifetime()

	g.log.Info("interface ready",
		"interface", g.name,
		"mesh_addr", cfg.LocalAddr.String(),
		"broadcast_everything", cfg.BroadcastEverything,
		"cache_lifetime", g.cfg.CacheLifetime,
	)

	return g, nil
}

// Name returns the interface name assigned by the OS.
func (g *Gateway) Name() string {
	return g.name
}

// LocalAddr returns this node's mesh address.
func (g *Gateway) LocalAddr() radio.Addr {
	return g.cfg.LocalAddr
}

// Cache returns the address cache.
func (g *Gateway) Cache() *addrcache.Cache {
	return g.cache
}

// Queue returns the transmit queue.
func (g *Gateway) Queue() *radio.Queue {
	return g.queue
}

// Close closes the TUN device, which unblocks HostToMesh.
func (g *Gateway) Close() error {
	return g.dev.Close()
}

// Info describes the gateway for status reporting.
type Info struct {
	Interface           string        `json:"interface"`
	LocalAddr           string        `json:"mesh_addr"`
	BroadcastEverything bool          `json:"broadcast_everything"`
	CacheLifetime       time.Duration `json:"cache_lifetime"`
	CacheEntries        int           `json:"cache_entries"`
	QueueDepth          int           `json:"queue_depth"`
	QueueCapacity       int           `json:"queue_capacity"`
	MTU                 int           `json:"mtu"`
}

// Info returns a snapshot of the gateway state.
func (g *Gateway) Info() Info {
	return Info{
		Interface:           g.name,
		LocalAddr:           g.cfg.LocalAddr.String(),
		BroadcastEverything: g.cfg.BroadcastEverything,
		CacheLifetime:       g.cfg.CacheLifetime,
		CacheEntries:        g.cache.Len(),
		QueueDepth:          g.queue.Len(),
		QueueCapacity:       g.queue.Cap(),
		MTU:                 g.dev.MTU(),
	}
}

// Run starts both packet loops and blocks until one of them fails or ctx is
// cancelled. On return the TUN device is closed. The inbound loop stays
// blocked in the reframer until its byte source is closed by the caller.
func (g *Gateway) Run(ctx context.Context, reframer radio.Reframer) error {
	errCh := make(chan error, 2)

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	if g.cfg.SweepInterval > 0 {
		g.cache.StartSweeper(g.cfg.SweepInterval, stopSweep)
	}

	go func() {
		errCh <- g.HostToMesh()
	}()
	go func() {
		errCh <- g.MeshToHost(reframer)
	}()

	var err error
	select {
	case err = <-errCh:
		g.log.Error("packet loop stopped", "error", err)
	case <-ctx.Done():
		g.log.Info("gateway shutting down")
	}

	if cerr := g.dev.Close(); cerr != nil {
		g.log.Warn("failed to close TUN device", "error", cerr)
	}
	return err
}
