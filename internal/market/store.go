package market

import (
	"errors"
	"sync"
	"time"
)

// MemoryStore is a sharded in-memory candle cache keyed by symbol@interval.
// Entries older than the TTL are treated as missing.
type MemoryStore struct {
	shards []storeShard
	ttl    time.Duration
	max    int
	now    func() time.Time
}

type storeShard struct {
	mu   sync.RWMutex
	data map[string]storeEntry
}

type storeEntry struct {
	candles   []Candle
	requested int
	storedAt  time.Time
}

const defaultShardCount = 16

func NewMemoryStore(ttl time.Duration, max int, now func() time.Time) *MemoryStore {
	if max <= 0 {
		max = 500
	}
	if now == nil {
		now = time.Now
	}
	s := &MemoryStore{
		shards: make([]storeShard, defaultShardCount),
		ttl:    ttl,
		max:    max,
		now:    now,
	}
	for i := range s.shards {
		s.shards[i] = storeShard{data: make(map[string]storeEntry)}
	}
	return s
}

func storeKey(symbol, interval string) string { return symbol + "@" + interval }

func (s *MemoryStore) shardFor(key string) *storeShard {
	return &s.shards[hashKey(key)%uint32(len(s.shards))]
}

// Put replaces the cached series, keeping at most max trailing bars.
// requested is the limit the series was fetched with; upstream may have
// returned fewer bars.
func (s *MemoryStore) Put(symbol, interval string, candles []Candle, requested int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol and interval are required")
	}
	if len(candles) > s.max {
		candles = candles[len(candles)-s.max:]
	}
	dst := make([]Candle, len(candles))
	copy(dst, candles)
	k := storeKey(symbol, interval)
	sh := s.shardFor(k)
	sh.mu.Lock()
	sh.data[k] = storeEntry{candles: dst, requested: requested, storedAt: s.now()}
	sh.mu.Unlock()
	return nil
}

// Get returns up to limit trailing bars, or false when missing, stale or short.
func (s *MemoryStore) Get(symbol, interval string, limit int) ([]Candle, bool) {
	k := storeKey(symbol, interval)
	sh := s.shardFor(k)
	sh.mu.RLock()
	entry, ok := sh.data[k]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(entry.storedAt) > s.ttl {
		return nil, false
	}
	n := len(entry.candles)
	if limit > entry.requested && limit > n {
		return nil, false
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Candle, limit)
	copy(out, entry.candles[len(entry.candles)-limit:])
	return out, true
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
