package bucket

import (
	"slices"
	"sync"
)

// Pair is a confirmed match. Left indexes the build side, Right the probe
// side.
type Pair struct {
	Left  int
	Right int
}

func (p Pair) key() uint64 {
	return mix(uint64(p.Left)<<32 ^ uint64(p.Right))
}

type pairShard struct {
	mu    sync.RWMutex
	items map[Pair]struct{}
}

// PairSet is a sharded concurrent set of pairs. It only grows.
type PairSet struct {
	shards [numShards]pairShard
}

func NewPairSet() *PairSet {
	ps := &PairSet{}
	for i := range ps.shards {
		ps.shards[i].items = make(map[Pair]struct{})
	}
	return ps
}

func (ps *PairSet) shard(p Pair) *pairShard {
	return &ps.shards[p.key()&shardMask]
}

func (ps *PairSet) Contains(p Pair) bool {
	s := ps.shard(p)
	s.mu.RLock()
	_, ok := s.items[p]
	s.mu.RUnlock()
	return ok
}

// Add inserts p and reports whether it was not already present.
func (ps *PairSet) Add(p Pair) bool {
	s := ps.shard(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p]; ok {
		return false
	}
	s.items[p] = struct{}{}
	return true
}

func (ps *PairSet) Len() int {
	n := 0
	for i := range ps.shards {
		s := &ps.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Pairs returns every pair ordered by Left, then Right.
func (ps *PairSet) Pairs() []Pair {
	out := make([]Pair, 0, ps.Len())
	for i := range ps.shards {
		s := &ps.shards[i]
		s.mu.RLock()
		for p := range s.items {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	slices.SortFunc(out, comparePairs)
	return out
}

func comparePairs(a, b Pair) int {
	if a.Left != b.Left {
		return a.Left - b.Left
	}
	return a.Right - b.Right
}
