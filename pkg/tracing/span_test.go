package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountsRollUp(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "join.minhash", "abc")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, band := StartChildSpan(ctx, "band")
			band.Add("candidates", 3)
			band.End()
		}()
	}
	wg.Wait()

	assert.Equal(t, 24, root.Count("candidates"))
	assert.Equal(t, 0, root.Count("confirmed"))
}

func TestChildInheritsTraceID(t *testing.T) {
	ctx, _ := StartSpan(context.Background(), "root", "feed")
	ctx, child := StartChildSpan(ctx, "band-0")
	assert.Equal(t, "feed", child.TraceID)
	assert.Same(t, child, FromContext(ctx))

	_, orphan := StartChildSpan(context.Background(), "band-1")
	assert.Empty(t, orphan.TraceID)
	orphan.Add("buckets", 1)
	assert.Equal(t, 1, orphan.Count("buckets"))
}

func TestSlowest(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "root", "1")
	assert.Nil(t, root.Slowest())

	_, fast := StartChildSpan(ctx, "fast")
	fast.Duration = time.Millisecond
	_, slow := StartChildSpan(ctx, "slow")
	slow.Duration = time.Second
	assert.Same(t, slow, root.Slowest())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "join.hamming", "42")
	_, band := StartChildSpan(ctx, "band-3")
	band.Add("confirmed", 2)
	band.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	require.Contains(t, out, "span=join.hamming")
	assert.Contains(t, out, "confirmed=2")
	assert.Contains(t, out, "slowest=band-3")
	assert.Contains(t, out, "span=band-3")
}
