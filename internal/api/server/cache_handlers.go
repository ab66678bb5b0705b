package server

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rennerdo30/radiogate/internal/addrcache"
	"github.com/rennerdo30/radiogate/internal/logging"
)

// CacheAPI exposes the IP to mesh address cache.
type CacheAPI struct {
	cache *addrcache.Cache
}

// NewCacheAPI creates a new cache API handler. cache may be nil, in which
// case every endpoint answers 503.
func NewCacheAPI(cache *addrcache.Cache) *CacheAPI {
	return &CacheAPI{cache: cache}
}

// RegisterRoutes registers cache API routes on the given router.
func (c *CacheAPI) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cache", func(r chi.Router) {
		r.Use(c.requireCache)
		r.Get("/stats", c.handleGetStats)
		r.Get("/entries", c.handleListEntries)
		r.Delete("/entries", c.handleClear)
		r.Get("/entries/{ip}", c.handleGetEntry)
		r.Delete("/entries/{ip}", c.handleDeleteEntry)
		r.Post("/sweep", c.handleSweep)
	})
}

func (c *CacheAPI) requireCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.cache == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error": "Cache not available",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type entryResponse struct {
	IP        string    `json:"ip"`
	MeshAddr  string    `json:"mesh_addr"`
	Expires   time.Time `json:"expires"`
	ExpiresIn string    `json:"expires_in"`
}

func toEntryResponse(e addrcache.Entry, now time.Time) entryResponse {
	return entryResponse{
		IP:        e.IP.String(),
		MeshAddr:  e.Addr.String(),
		Expires:   e.Expires,
		ExpiresIn: e.Expires.Sub(now).Round(time.Second).String(),
	}
}

// handleGetStats returns cache statistics.
func (c *CacheAPI) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stored":               c.cache.Len(),
		"fresh":                len(c.cache.Entries()),
		"lifetime":             c.cache.Lifetime().String(),
		"broadcast_everything": c.cache.BroadcastEverything(),
	})
}

// handleListEntries returns the fresh entries ordered by IP.
func (c *CacheAPI) handleListEntries(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	entries := c.cache.Entries()

	response := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, toEntryResponse(e, now))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": response,
		"count":   len(response),
	})
}

func (c *CacheAPI) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	ip, ok := parseIPParam(w, r)
	if !ok {
		return
	}

	entry, found := c.cache.Get(ip)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":     "Entry not found",
			"ip":        ip.String(),
			"mesh_addr": c.cache.Resolve(ip).String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(entry, time.Now()))
}

func (c *CacheAPI) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	ip, ok := parseIPParam(w, r)
	if !ok {
		return
	}

	if !c.cache.Delete(ip) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Entry not found",
			"ip":    ip.String(),
		})
		return
	}

	logging.FromContext(r.Context()).Info("cache entry deleted", "ip", ip.String())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Entry deleted",
		"ip":      ip.String(),
	})
}

func (c *CacheAPI) handleClear(w http.ResponseWriter, r *http.Request) {
	c.cache.Clear()
	logging.FromContext(r.Context()).Info("cache cleared")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cache cleared",
	})
}

func (c *CacheAPI) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed := c.cache.Sweep()
	logging.FromContext(r.Context()).Debug("cache swept", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

func parseIPParam(w http.ResponseWriter, r *http.Request) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid IP address",
			"message": err.Error(),
		})
		return netip.Addr{}, false
	}
	return ip, true
}
