package separation

import (
	"strings"
	"sync"
	"time"
)

// pairKey returns a stable, order-independent key for an aircraft pair.
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// splitPairKey reverses pairKey.
func splitPairKey(key string) (a, b string) {
	a, b, _ = strings.Cut(key, "|")
	return a, b
}

// Cooldown suppresses repeat predictive alerts for the same aircraft
// pair within a configured window, per spec.md's WarningCooldownMap.
// Entries are pruned once they are twice as old as the cooldown window,
// so a pair that stops converging does not leak memory forever.
type Cooldown struct {
	mu       sync.Mutex
	window   time.Duration
	lastWarn map[string]time.Time
}

// NewCooldown constructs a Cooldown with the given suppression window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, lastWarn: make(map[string]time.Time)}
}

// Allow reports whether a predictive alert for aircraft a/b may be
// issued at now, and if so, records now as the pair's last-warned time.
func (c *Cooldown) Allow(a, b string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pairKey(a, b)
	last, ok := c.lastWarn[key]
	if ok && now.Sub(last) < c.window {
		return false
	}
	c.lastWarn[key] = now
	return true
}

// Prune removes entries last warned more than 2x the cooldown window
// ago. Call it once per cycle from the engine.
func (c *Cooldown) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := 2 * c.window
	for key, last := range c.lastWarn {
		if now.Sub(last) >= expiry {
			delete(c.lastWarn, key)
		}
	}
}

// Len reports the number of pairs currently tracked, for tests.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastWarn)
}

// Forget removes every cooldown entry referencing id, called when the
// registry retires an aircraft (spec.md §4.6).
func (c *Cooldown) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.lastWarn {
		a, b := splitPairKey(key)
		if a == id || b == id {
			delete(c.lastWarn, key)
		}
	}
}
