package bucket

import "sync"

// MatchBucket collects, for one bucket key, the build-side ids (A) and the
// probe-side ids (B) that landed there.
type MatchBucket struct {
	A []int
	B []int
}

// HasMatch reports whether both sides are present.
func (b *MatchBucket) HasMatch() bool {
	return len(b.A) > 0 && len(b.B) > 0
}

// Pairs expands the bucket into the Cartesian product A × B.
func (b *MatchBucket) Pairs() []Pair {
	if !b.HasMatch() {
		return nil
	}
	out := make([]Pair, 0, len(b.A)*len(b.B))
	for _, a := range b.A {
		for _, bb := range b.B {
			out = append(out, Pair{Left: a, Right: bb})
		}
	}
	return out
}

type sideShard struct {
	mu    sync.Mutex
	items map[uint64]*MatchBucket
}

// SideMap is a sharded map from bucket key to MatchBucket, filled from both
// sides of a join in the same pass.
type SideMap struct {
	shards [numShards]sideShard
}

func NewSideMap() *SideMap {
	m := &SideMap{}
	for i := range m.shards {
		m.shards[i].items = make(map[uint64]*MatchBucket)
	}
	return m
}

func (m *SideMap) shard(key uint64) *sideShard {
	return &m.shards[mix(key)&shardMask]
}

func (m *SideMap) AddA(key uint64, idx int) {
	s := m.shard(key)
	s.mu.Lock()
	b := s.bucket(key)
	b.A = append(b.A, idx)
	s.mu.Unlock()
}

func (m *SideMap) AddB(key uint64, idx int) {
	s := m.shard(key)
	s.mu.Lock()
	b := s.bucket(key)
	b.B = append(b.B, idx)
	s.mu.Unlock()
}

func (s *sideShard) bucket(key uint64) *MatchBucket {
	b, ok := s.items[key]
	if !ok {
		b = &MatchBucket{}
		s.items[key] = b
	}
	return b
}

// Matches returns the buckets that hold ids from both sides. It must not
// run concurrently with AddA or AddB.
func (m *SideMap) Matches() []*MatchBucket {
	var out []*MatchBucket
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for _, b := range s.items {
			if b.HasMatch() {
				out = append(out, b)
			}
		}
		s.mu.Unlock()
	}
	return out
}

// Len returns the number of distinct keys.
func (m *SideMap) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

func (m *SideMap) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		clear(s.items)
		s.mu.Unlock()
	}
}
