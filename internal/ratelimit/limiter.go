// Package ratelimit implements sliding-window admission control keyed by
// client identifier, with periodic reclamation of stale state.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds admission policy settings.
type Config struct {
	MaxRequests     int           // admitted requests per window
	Window          time.Duration // rolling window length
	Retention       time.Duration // reclamation horizon, coarser than Window
	ReclaimInterval time.Duration // cadence of the background sweep
}

// ApplyDefaults fills empty fields with the chat-surface policy.
func (c *Config) ApplyDefaults() {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 10
	}
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 5 * time.Minute
	}
}

// Limiter is a process-scoped admission gate. Each identifier holds an
// independent timestamp log; admits for distinct identifiers never contend
// on the same lock beyond the map lookup.
type Limiter struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	times []time.Time
	gone  bool // set when reclaim removes the entry from the map
}

// New creates a Limiter with the given policy.
func New(cfg Config, logger *zap.Logger) *Limiter {
	cfg.ApplyDefaults()
	return &Limiter{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Admit reports whether a request from identifier may proceed. Timestamps
// older than the window are dropped first; a rejected request does not
// consume quota (its timestamp is not recorded).
func (l *Limiter) Admit(identifier string) bool {
	now := l.now()

	for {
		e := l.entry(identifier)

		e.mu.Lock()
		if e.gone {
			// Reclaim removed this entry between the map lookup and the
			// lock. A timestamp appended here would be lost, so retry
			// against the live entry.
			e.mu.Unlock()
			continue
		}

		e.trim(now.Add(-l.cfg.Window))

		if len(e.times) >= l.cfg.MaxRequests {
			e.mu.Unlock()
			return false
		}

		e.times = append(e.times, now)
		e.mu.Unlock()
		return true
	}
}

// Window returns the rolling window length, for client retry hints.
func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

// Run executes the reclamation loop until ctx is cancelled. Cancellation is
// observed between sweeps, never mid-sweep.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("rate limiter reclamation stopped")
			return
		case <-ticker.C:
			l.reclaim()
		}
	}
}

// reclaim drops timestamps older than the retention horizon and deletes
// identifiers whose logs became empty, bounding memory to active clients.
func (l *Limiter) reclaim() {
	cutoff := l.now().Add(-l.cfg.Retention)

	l.mu.RLock()
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	var removed int
	for _, id := range ids {
		l.mu.RLock()
		e, ok := l.entries[id]
		l.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		e.trim(cutoff)
		empty := len(e.times) == 0
		e.mu.Unlock()

		if !empty {
			continue
		}

		// Re-check under the write lock: an Admit may have raced in.
		l.mu.Lock()
		if cur, ok := l.entries[id]; ok && cur == e {
			e.mu.Lock()
			if len(e.times) == 0 {
				e.gone = true
				delete(l.entries, id)
				removed++
			}
			e.mu.Unlock()
		}
		l.mu.Unlock()
	}

	if removed > 0 {
		l.logger.Debug("reclaimed rate limiter entries", zap.Int("removed", removed))
	}
}

// entry returns the identifier's record, creating it if needed.
func (l *Limiter) entry(identifier string) *entry {
	l.mu.RLock()
	e, ok := l.entries[identifier]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[identifier]; ok {
		return e
	}
	e = &entry{}
	l.entries[identifier] = e
	return e
}

// trim drops timestamps at or before cutoff. Caller holds e.mu.
func (e *entry) trim(cutoff time.Time) {
	kept := e.times[:0]
	for _, t := range e.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.times = kept
}
