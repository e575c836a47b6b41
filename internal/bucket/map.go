// Package bucket provides the concurrent structures shared by the blocking
// workers: the per-band bucket map, the deduplicated set of confirmed pairs,
// and side-tagged buckets for the single-pass strategy. Each structure is
// split across independently locked shards so that workers hashing
// different keys rarely contend.
package bucket

import "sync"

// numShards must stay a power of two; shard selection masks the key.
const numShards = 64

const shardMask = numShards - 1

// mix spreads structured keys (small ints, pair coordinates) across shards.
func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

type mapShard struct {
	mu    sync.Mutex
	items map[uint64][]int
}

// Map is a sharded multimap from bucket key to record indices.
type Map struct {
	shards [numShards]mapShard
}

func NewMap() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i].items = make(map[uint64][]int)
	}
	return m
}

func (m *Map) shard(key uint64) *mapShard {
	return &m.shards[mix(key)&shardMask]
}

// Add appends idx to the bucket for key.
func (m *Map) Add(key uint64, idx int) {
	s := m.shard(key)
	s.mu.Lock()
	s.items[key] = append(s.items[key], idx)
	s.mu.Unlock()
}

// Get returns a copy of the indices stored under key.
func (m *Map) Get(key uint64) []int {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.items[key]
	if len(ids) == 0 {
		return nil
	}
	return append([]int(nil), ids...)
}

// Len returns the number of distinct keys.
func (m *Map) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Clear removes every key.
func (m *Map) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		clear(s.items)
		s.mu.Unlock()
	}
}
