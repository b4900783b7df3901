// Package ratelimit implements fixed-window admission control keyed by
// client address.
//
// Fixed-window counting admits up to 2x the nominal rate across a window
// boundary; that imprecision is accepted. Counters live in process memory,
// so a multi-instance deployment enforces the limit per instance unless the
// counters move to a shared store.
package ratelimit

import (
	"sync"
	"time"

	"github.com/siteroast/siteroast/internal/roast"
)

// Config holds limiter settings.
type Config struct {
	Window    time.Duration
	Max       int
	AllowList []string
}

// Decision reports the outcome of one admission check along with the
// metadata exposed in rate-limit response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per client address in fixed windows. Addresses on
// the allow-list bypass counting unconditionally.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	allow   map[string]struct{}
	cfg     Config
	clock   roast.Clock
}

// New creates a Limiter.
func New(cfg Config, clock roast.Clock) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 3
	}
	allow := make(map[string]struct{}, len(cfg.AllowList))
	for _, addr := range cfg.AllowList {
		allow[addr] = struct{}{}
	}
	return &Limiter{
		windows: make(map[string]*window),
		allow:   allow,
		cfg:     cfg,
		clock:   clock,
	}
}

// Check performs one admission check for addr. The counter update is atomic
// per check; stale windows for other addresses are pruned opportunistically.
func (l *Limiter) Check(addr string) Decision {
	now := l.clock.Now()
	if _, ok := l.allow[addr]; ok {
		return Decision{Allowed: true, Limit: l.cfg.Max, Remaining: l.cfg.Max, Reset: now.Add(l.cfg.Window)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)

	w, ok := l.windows[addr]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		w = &window{start: now}
		l.windows[addr] = w
	}
	reset := w.start.Add(l.cfg.Window)

	if w.count >= l.cfg.Max {
		return Decision{Allowed: false, Limit: l.cfg.Max, Remaining: 0, Reset: reset}
	}
	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.cfg.Max,
		Remaining: l.cfg.Max - w.count,
		Reset:     reset,
	}
}

// prune drops expired windows. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	for addr, w := range l.windows {
		if now.Sub(w.start) >= l.cfg.Window {
			delete(l.windows, addr)
		}
	}
}
