package redis

import (
	"context"
	"time"

	"github.com/wonny/salescast/internal/contracts"
)

// HeatCache implements contracts.HeatCache on top of Cache
type HeatCache struct {
	cache *Cache
}

// NewHeatCache creates a heat table cache
func NewHeatCache(client *Client, prefix string) *HeatCache {
	return &HeatCache{cache: NewCache(client, prefix)}
}

// GetHeat returns a cached heat table
func (h *HeatCache) GetHeat(ctx context.Context, key string) (*contracts.HeatTable, bool, error) {
	var t contracts.HeatTable
	found, err := h.cache.Get(ctx, key, &t)
	if err != nil || !found {
		return nil, false, err
	}
	return &t, true, nil
}

// SetHeat stores a heat table
func (h *HeatCache) SetHeat(ctx context.Context, key string, table *contracts.HeatTable, ttl time.Duration) error {
	return h.cache.Set(ctx, key, table, ttl)
}
