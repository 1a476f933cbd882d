package odoo

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DedupCache suppresses re-notification for external records whose
// identifying fields have not changed within the dedup window. The interface
// allows a shared backing store for multi-instance deployments; the default
// implementation is process-local.
type DedupCache interface {
	// Seen reports whether key was marked within the dedup window.
	Seen(key string) bool
	// Mark stamps key with the current time.
	Mark(key string)
	// Sweep evicts entries older than the retention window.
	Sweep()
}

// TTLDedup is an in-memory DedupCache backed by go-cache. Entries live for
// the retention window; Seen only honors them within the shorter dedup
// window.
type TTLDedup struct {
	cache  *gocache.Cache
	window time.Duration
}

// NewTTLDedup creates a dedup cache. window is how long an unchanged key
// suppresses re-notification; retention is how long entries are kept before
// Sweep evicts them.
func NewTTLDedup(window, retention time.Duration) *TTLDedup {
	if retention < window {
		retention = window
	}
	return &TTLDedup{
		// no background janitor, the sync worker sweeps once per cycle
		cache:  gocache.New(retention, 0),
		window: window,
	}
}

// Seen reports whether key was marked within the dedup window.
func (d *TTLDedup) Seen(key string) bool {
	v, ok := d.cache.Get(key)
	if !ok {
		return false
	}
	markedAt, ok := v.(time.Time)
	if !ok {
		return false
	}
	return time.Since(markedAt) < d.window
}

// Mark stamps key with the current time.
func (d *TTLDedup) Mark(key string) {
	d.cache.Set(key, time.Now(), gocache.DefaultExpiration)
}

// Sweep evicts entries past the retention window.
func (d *TTLDedup) Sweep() {
	d.cache.DeleteExpired()
}
