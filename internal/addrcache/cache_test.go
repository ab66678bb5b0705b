package addrcache

import (
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/radiogate/internal/radio"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestNew(t *testing.T) {
	t.Run("zero lifetime defaults", func(t *testing.T) {
		c := New(Config{})
		assert.Equal(t, DefaultLifetime, c.Lifetime())
		assert.Equal(t, 0, c.Len())
		assert.False(t, c.BroadcastEverything())
	})

	t.Run("keeps configured lifetime", func(t *testing.T) {
		c := New(Config{Lifetime: 30 * time.Second})
		assert.Equal(t, 30*time.Second, c.Lifetime())
	})
}

func TestResolveUnknown(t *testing.T) {
	c := New(Config{Lifetime: time.Minute})

	for _, s := range []string{"10.0.0.5", "192.168.1.1", "fd00::1", "::"} {
		t.Run(s, func(t *testing.T) {
			assert.Equal(t, radio.Broadcast, c.Resolve(netip.MustParseAddr(s)))
		})
	}
}

func TestRecordAndResolveWithinLifetime(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Lifetime: 30 * time.Second, Now: clock.Now})
	ip := netip.MustParseAddr("10.0.0.5")

	c.Record(ip, 0x1234)

	clock.Advance(10 * time.Second)
	assert.Equal(t, radio.Addr(0x1234), c.Resolve(ip))

	clock.Advance(30 * time.Second)
	assert.Equal(t, radio.Broadcast, c.Resolve(ip))
}

func TestResolveAtExactExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Lifetime: time.Second, Now: clock.Now})
	ip := netip.MustParseAddr("10.0.0.5")

	c.Record(ip, 0x1234)
	clock.Advance(time.Second - time.Nanosecond)
	assert.Equal(t, radio.Addr(0x1234), c.Resolve(ip))

	clock.Advance(time.Nanosecond)
	assert.Equal(t, radio.Broadcast, c.Resolve(ip))
}

func TestBroadcastEverything(t *testing.T) {
	c := New(Config{Lifetime: 30 * time.Second, BroadcastEverything: true})
	ip := netip.MustParseAddr("10.0.0.5")

	c.Record(ip, 0x1234)

	assert.Equal(t, radio.Broadcast, c.Resolve(ip))
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.BroadcastEverything())
}

func TestRecordLastWriterWins(t *testing.T) {
	c := New(Config{Lifetime: time.Minute})
	ip := netip.MustParseAddr("fd00::5")

	c.Record(ip, 0xA)
	c.Record(ip, 0xB)

	assert.Equal(t, radio.Addr(0xB), c.Resolve(ip))
	assert.Equal(t, 1, c.Len())
}

func TestRecordRefreshExtendsExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Lifetime: 30 * time.Second, Now: clock.Now})
	ip := netip.MustParseAddr("10.0.0.5")

	c.Record(ip, 0x1234)
	first := c.Entries()[0].Expires

	clock.Advance(20 * time.Second)
	c.Record(ip, 0x1234)
	second := c.Entries()[0].Expires

	assert.False(t, second.Before(first))
	assert.Equal(t, 1, c.Len())

	clock.Advance(20 * time.Second)
	assert.Equal(t, radio.Addr(0x1234), c.Resolve(ip))
}

func TestMappedIPv4SharesEntry(t *testing.T) {
	c := New(Config{Lifetime: time.Minute})

	c.Record(netip.MustParseAddr("::ffff:10.0.0.5"), 0x77)

	assert.Equal(t, radio.Addr(0x77), c.Resolve(netip.MustParseAddr("10.0.0.5")))
}

func TestLookup(t *testing.T) {
	c := New(Config{Lifetime: time.Minute})
	ip := netip.MustParseAddr("10.0.0.9")

	addr, learned := c.Lookup(ip)
	assert.False(t, learned)
	assert.Equal(t, radio.Broadcast, addr)

	c.Record(ip, 0x99)
	addr, learned = c.Lookup(ip)
	assert.True(t, learned)
	assert.Equal(t, radio.Addr(0x99), addr)
}

func TestEntriesAndSweep(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Lifetime: 10 * time.Second, Now: clock.Now})

	c.Record(netip.MustParseAddr("10.0.0.2"), 2)
	clock.Advance(5 * time.Second)
	c.Record(netip.MustParseAddr("10.0.0.1"), 1)
	c.Record(netip.MustParseAddr("fd00::1"), 3)

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), entries[0].IP)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), entries[1].IP)

	clock.Advance(6 * time.Second)
	assert.Len(t, c.Entries(), 2)
	assert.Equal(t, 3, c.Len())

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, radio.Addr(1), c.Resolve(netip.MustParseAddr("10.0.0.1")))
}

func TestStartSweeper(t *testing.T) {
	c := New(Config{Lifetime: time.Millisecond})
	c.Record(netip.MustParseAddr("10.0.0.1"), 1)

	stopCh := make(chan struct{})
	defer close(stopCh)
	c.StartSweeper(5*time.Millisecond, stopCh)

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{Lifetime: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ip := netip.MustParseAddr(fmt.Sprintf("10.0.%d.%d", n, j%50))
				c.Record(ip, radio.Addr(n))
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ip := netip.MustParseAddr(fmt.Sprintf("10.0.%d.%d", n, j%50))
				addr := c.Resolve(ip)
				if addr != radio.Broadcast && addr != radio.Addr(n) {
					t.Errorf("unexpected address %v for %v", addr, ip)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8*50, c.Len())
}

func TestGetDeleteClear(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Lifetime: time.Minute, Now: clock.Now})
	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.0.2")

	c.Record(a, 0xA)
	c.Record(b, 0xB)

	entry, ok := c.Get(netip.MustParseAddr("::ffff:10.0.0.1"))
	require.True(t, ok)
	assert.Equal(t, radio.Addr(0xA), entry.Addr)
	assert.Equal(t, clock.Now().Add(time.Minute), entry.Expires)

	assert.True(t, c.Delete(a))
	assert.False(t, c.Delete(a))
	_, ok = c.Get(a)
	assert.False(t, ok)
	assert.Equal(t, radio.Broadcast, c.Resolve(a))

	clock.Advance(time.Minute)
	_, ok = c.Get(b)
	assert.False(t, ok, "stale entries are not returned")

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
