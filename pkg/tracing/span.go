// Package tracing times a join and its bands. A join opens a root span keyed
// by its seed and each band opens a child; counters added to a child also
// accumulate on every ancestor, so the root ends up with join-wide totals.
package tracing

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage of a join.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	parent   *Span
	mu       sync.Mutex
	counts   map[string]int
	children []*Span
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now(), counts: map[string]int{}}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent it
// behaves like a root span with an empty trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	s := &Span{Name: name, Start: time.Now(), counts: map[string]int{}, parent: parent}
	if parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

// Add increments counter key on s and all of its ancestors.
func (s *Span) Add(key string, n int) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cur.counts[key] += n
		cur.mu.Unlock()
	}
}

// Count returns the current value of counter key.
func (s *Span) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Slowest returns the ended child with the longest duration, or nil.
func (s *Span) Slowest() *Span {
	s.mu.Lock()
	children := slices.Clone(s.children)
	s.mu.Unlock()
	if len(children) == 0 {
		return nil
	}
	return slices.MaxFunc(children, func(a, b *Span) int { return cmp.Compare(a.Duration, b.Duration) })
}

func (s *Span) attrs() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := []any{"trace_id", s.TraceID, "span", s.Name, "duration_ms", s.Duration.Milliseconds()}
	for _, k := range keys {
		out = append(out, k, s.counts[k])
	}
	return out
}

// Log writes the span summary at info level and each child at debug level.
func (s *Span) Log(logger *slog.Logger) {
	attrs := s.attrs()
	if slow := s.Slowest(); slow != nil {
		attrs = append(attrs, "slowest", slow.Name, "slowest_ms", slow.Duration.Milliseconds())
	}
	logger.Info("span", attrs...)

	s.mu.Lock()
	children := slices.Clone(s.children)
	s.mu.Unlock()
	for _, c := range children {
		logger.Debug("span", c.attrs()...)
	}
}
