package queryfe

import (
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// Config holds the Query Front-End's per-method tunables (spec section 6's
// `upstream.per_method_timeout_ms` and the cache's method TTLs).
type Config struct {
	// PerMethodTimeout overrides DefaultTimeout for specific methods.
	PerMethodTimeout map[types.Method]time.Duration
	DefaultTimeout   time.Duration

	// MethodTTL overrides DefaultTTL for specific methods' cache entries.
	MethodTTL  map[types.Method]time.Duration
	DefaultTTL time.Duration

	// RetryJitterBase bounds the single internal retry's delay for a
	// transient upstream failure (spec 4.K: "one attempt with jitter").
	RetryJitterBase time.Duration
}

// DefaultConfig mirrors spec section 6's defaults: a 5s upstream call
// budget and a 5 minute cache TTL, per method overrides left empty.
func DefaultConfig() Config {
	return Config{
		PerMethodTimeout: map[types.Method]time.Duration{},
		DefaultTimeout:   5 * time.Second,
		MethodTTL:        map[types.Method]time.Duration{},
		DefaultTTL:       5 * time.Minute,
		RetryJitterBase:  100 * time.Millisecond,
	}
}

// TimeoutFor returns the per-call budget for an upstream request of m.
func (c Config) TimeoutFor(m types.Method) time.Duration {
	if d, ok := c.PerMethodTimeout[m]; ok {
		return d
	}
	return c.DefaultTimeout
}

// TTLFor returns the cache TTL to apply when storing m's computed result.
func (c Config) TTLFor(m types.Method) time.Duration {
	if d, ok := c.MethodTTL[m]; ok {
		return d
	}
	return c.DefaultTTL
}
