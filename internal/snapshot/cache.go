package snapshot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Facility is the current-state snapshot published for operator and
// coordinator consumption: no history beyond what's needed to answer
// "what is the facility doing right now". Holding more than this would
// cross into the historical-telemetry ground the interlock logic
// explicitly leaves out.
type Facility struct {
	Mode           string    `json:"mode"`
	AscramReason   string    `json:"ascram_reason"`
	ChargeMean     float64   `json:"charge_mean"`
	InflowMean     float64   `json:"inflow_mean"`
	OutflowMean    float64   `json:"outflow_mean"`
	Target         float64   `json:"target"`
	MaxBurnCombined float64  `json:"max_burn_combined"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Cache is a redis-backed write-through cache of the latest Facility
// snapshot, an in-process copy served first and redis kept as the
// cross-process fallback a coordinator restart reads from. Grounded on
// the portfolio manager's in-memory-map-then-redis lookup chain.
type Cache struct {
	redis *redis.Client
	key   string

	mu     sync.RWMutex
	latest *Facility
}

// NewCache constructs a Cache keyed by facilityID.
func NewCache(rdb *redis.Client, facilityID string) *Cache {
	return &Cache{redis: rdb, key: "reactorctl:facility:" + facilityID}
}

// Put stores f as the latest snapshot, in-process immediately and in
// redis best-effort (a redis outage degrades the cache, not the
// control loop).
func (c *Cache) Put(ctx context.Context, f Facility) {
	c.mu.Lock()
	c.latest = &f
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.redis.Set(ctx, c.key, raw, time.Hour)
}

// Get returns the in-process snapshot if present, falling back to
// redis (e.g. right after a coordinator restart).
func (c *Cache) Get(ctx context.Context) (Facility, bool) {
	c.mu.RLock()
	if c.latest != nil {
		f := *c.latest
		c.mu.RUnlock()
		return f, true
	}
	c.mu.RUnlock()

	if c.redis == nil {
		return Facility{}, false
	}
	raw, err := c.redis.Get(ctx, c.key).Result()
	if err != nil {
		return Facility{}, false
	}
	var f Facility
	if json.Unmarshal([]byte(raw), &f) != nil {
		return Facility{}, false
	}
	return f, true
}
