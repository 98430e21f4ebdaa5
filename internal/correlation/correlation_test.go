package correlation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kestrelhq/jobworker/internal/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceIDRoundTrip(t *testing.T) {
	ctx := correlation.WithTraceID(context.Background(), "trace-123")

	id, ok := correlation.TraceID(ctx)
	require.True(t, ok)
	assert.Equal(t, "trace-123", id)
}

func TestTraceIDAbsent(t *testing.T) {
	_, ok := correlation.TraceID(context.Background())
	assert.False(t, ok)
}

func TestNewTraceIDUnique(t *testing.T) {
	assert.NotEqual(t, correlation.New(), correlation.New())
}

// TestConcurrentJobsDoNotLeak guards against ever reintroducing a
// process-wide slot: each goroutine installs its own id and must only
// ever observe its own.
func TestConcurrentJobsDoNotLeak(t *testing.T) {
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := correlation.New()
			ctx := correlation.WithTraceID(context.Background(), id)
			got, ok := correlation.TraceID(ctx)
			assert.True(t, ok)
			assert.Equal(t, id, got)
		}(i)
	}
	wg.Wait()
}
