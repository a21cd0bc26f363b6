package market

import (
	"context"

	"fxagent/internal/logger"

	"golang.org/x/sync/singleflight"
)

// CachedSource serves repeated requests from a MemoryStore and collapses
// concurrent fetches for the same key into one upstream call.
type CachedSource struct {
	inner Source
	store *MemoryStore
	group singleflight.Group
}

func NewCachedSource(inner Source, store *MemoryStore) *CachedSource {
	return &CachedSource{inner: inner, store: store}
}

func (c *CachedSource) Name() string { return c.inner.Name() + "+cache" }

func (c *CachedSource) FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error) {
	symbol := inst.Symbol()
	if cached, ok := c.store.Get(symbol, interval, limit); ok {
		return cached, nil
	}
	v, err, _ := c.group.Do(storeKey(symbol, interval), func() (any, error) {
		candles, err := c.inner.FetchHistory(ctx, inst, interval, limit)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(symbol, interval, candles, limit); err != nil {
			logger.Warnf("[market] caching %s@%s failed: %v", symbol, interval, err)
		}
		return candles, nil
	})
	if err != nil {
		return nil, err
	}
	candles := v.([]Candle)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}
