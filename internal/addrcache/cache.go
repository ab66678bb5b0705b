// Package addrcache maps IP addresses to the mesh addresses they were last
// seen from.
package addrcache

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/rennerdo30/radiogate/internal/radio"
)

// DefaultLifetime is used when Config.Lifetime is zero.
const DefaultLifetime = 5 * time.Minute

// Entry is a learned IP to mesh address mapping.
type Entry struct {
	IP      netip.Addr `json:"ip"`
	Addr    radio.Addr `json:"mesh_addr"`
	Expires time.Time  `json:"expires"`
}

// fresh reports whether the entry may still be used at now. An entry is
// stale from its expiry instant onwards.
func (e Entry) fresh(now time.Time) bool {
	return now.Before(e.Expires)
}

// Config contains cache configuration.
type Config struct {
	// Lifetime is how long a learned mapping stays usable.
	Lifetime time.Duration

	// BroadcastEverything disables learning; every lookup resolves to
	// radio.Broadcast.
	BroadcastEverything bool

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Cache is a thread-safe IP to mesh address table. Expiry is checked when an
// entry is read; stale entries stay in the map until overwritten or swept.
type Cache struct {
	entries   map[netip.Addr]Entry
	lifetime  time.Duration
	broadcast bool
	now       func() time.Time
	mu        sync.RWMutex
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache{
		entries:   make(map[netip.Addr]Entry),
		lifetime:  cfg.Lifetime,
		broadcast: cfg.BroadcastEverything,
		now:       cfg.Now,
	}
}

// Resolve returns the mesh address to use for ip. Unknown and stale
// addresses resolve to radio.Broadcast.
func (c *Cache) Resolve(ip netip.Addr) radio.Addr {
	addr, _ := c.Lookup(ip)
	return addr
}

// Lookup is Resolve that also reports whether a learned address was used.
func (c *Cache) Lookup(ip netip.Addr) (radio.Addr, bool) {
	if c.broadcast {
		return radio.Broadcast, false
	}

	ip = ip.Unmap()

	c.mu.RLock()
	entry, exists := c.entries[ip]
	c.mu.RUnlock()

	if !exists || !entry.fresh(c.now()) {
		return radio.Broadcast, false
	}
	return entry.Addr, true
}

// Record stores addr as the mesh address for ip, replacing any previous
// entry. It does nothing in broadcast-everything mode.
func (c *Cache) Record(ip netip.Addr, addr radio.Addr) {
	if c.broadcast {
		return
	}

	ip = ip.Unmap()
	expires := c.now().Add(c.lifetime)

	c.mu.Lock()
	c.entries[ip] = Entry{IP: ip, Addr: addr, Expires: expires}
	c.mu.Unlock()
}

// Get returns the fresh entry for ip, if any.
func (c *Cache) Get(ip netip.Addr) (Entry, bool) {
	ip = ip.Unmap()

	c.mu.RLock()
	entry, exists := c.entries[ip]
	c.mu.RUnlock()

	if !exists || !entry.fresh(c.now()) {
		return Entry{}, false
	}
	return entry, true
}

// Delete removes the entry for ip and reports whether one was stored.
func (c *Cache) Delete(ip netip.Addr) bool {
	ip = ip.Unmap()

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[ip]
	delete(c.entries, ip)
	return exists
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[netip.Addr]Entry)
	c.mu.Unlock()
}

// BroadcastEverything reports whether learning is disabled.
func (c *Cache) BroadcastEverything() bool {
	return c.broadcast
}

// Lifetime returns the configured entry lifetime.
func (c *Cache) Lifetime() time.Duration {
	return c.lifetime
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns the fresh entries ordered by IP.
func (c *Cache) Entries() []Entry {
	now := c.now()

	c.mu.RLock()
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.fresh(now) {
			entries = append(entries, entry)
		}
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].IP.Less(entries[j].IP)
	})
	return entries
}

// Sweep deletes stale entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for ip, entry := range c.entries {
		if !entry.fresh(now) {
			delete(c.entries, ip)
			count++
		}
	}
	return count
}

// StartSweeper runs Sweep every interval until stopCh is closed.
func (c *Cache) StartSweeper(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stopCh:
				return
			}
		}
	}()
}
