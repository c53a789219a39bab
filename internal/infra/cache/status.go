// Package cache holds the latest published chamber statuses for quick reads.
// It is a read model, not the source of truth: the engine owns the state.
package cache

import (
	"sort"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
)

// DefaultSize is used when a non-positive size is given.
const DefaultSize = 256

// StatusCache keeps the most recent status per chamber.
type StatusCache struct {
	entries   *lru.Cache[string, engine.ChamberStatus]
	publishes atomic.Int64
	lastTick  atomic.Int64
}

var _ engine.StatusSink = (*StatusCache)(nil)

// NewStatusCache creates a cache holding up to size chambers.
func NewStatusCache(size int) (*StatusCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, engine.ChamberStatus](size)
	if err != nil {
		return nil, err
	}
	return &StatusCache{entries: entries}, nil
}

// Publish stores a batch of statuses from the engine.
func (c *StatusCache) Publish(statuses []engine.ChamberStatus) {
	for _, s := range statuses {
		c.entries.Add(s.ChamberID, s)
		c.lastTick.Store(s.Tick)
	}
	c.publishes.Add(1)
}

// Get returns the cached status of one chamber.
func (c *StatusCache) Get(chamberID string) (engine.ChamberStatus, bool) {
	return c.entries.Get(chamberID)
}

// All returns every cached status ordered by chamber ID.
func (c *StatusCache) All() []engine.ChamberStatus {
	out := c.entries.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].ChamberID < out[j].ChamberID })
	return out
}

func (c *StatusCache) Len() int {
	return c.entries.Len()
}

// LastTick is the tick of the most recent publish.
func (c *StatusCache) LastTick() int64 {
	return c.lastTick.Load()
}

// Publishes counts Publish calls.
func (c *StatusCache) Publishes() int64 {
	return c.publishes.Load()
}
