// Package store implements the concurrent key space: a sharded map
// from key to (value, optional expiry) with lazy expiration.
package store

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type entry struct {
	value     []byte
	expiresAt int64 // unix millis; 0 means no expiry
}

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// Store is a sharded, concurrency-safe key space. The zero value is
// not usable; construct with New.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return s.shards[h%uint64(shardCount)]
}

// Set upserts key, overwriting any prior value and expiry. expiresAt
// is a unix-millis absolute deadline; 0 means no expiry.
func (s *Store) Set(key string, value []byte, expiresAt int64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = entry{value: value, expiresAt: expiresAt}
	sh.mu.Unlock()
}

// Get returns the value for key and whether it is present and
// unexpired as of now (unix millis). An expired entry is treated as
// absent and may be physically removed as a side effect.
func (s *Store) Get(key string, now int64) ([]byte, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expiresAt != 0 && now >= e.expiresAt {
		sh.mu.Lock()
		// Re-check under the write lock: another writer may have
		// replaced this key with a fresh, non-expired entry.
		if cur, ok := sh.data[key]; ok && cur.expiresAt == e.expiresAt {
			delete(sh.data, key)
		}
		sh.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Keys returns every key whose expiry has not passed as of now. The
// source's pattern matching only ever handles "*"; this store honors
// that by ignoring pattern and returning all live keys, which is the
// minimum useful behavior.
func (s *Store) Keys(pattern string, now int64) []string {
	_ = pattern
	var keys []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, e := range sh.data {
			if e.expiresAt != 0 && now >= e.expiresAt {
				continue
			}
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Len reports the number of physically present entries, including any
// not yet lazily reaped expired ones. Exposed for tests and INFO-style
// diagnostics.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}
