package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitsOnceBurstIsSpent(t *testing.T) {
	l := New(10, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := New(1, 2)
	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())

	s := l.Stats()
	assert.Equal(t, 2, s.Burst)
	assert.Equal(t, time.Second, s.Interval)
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.TryAcquire())
}

func TestShared_SameNodeSameLimiter(t *testing.T) {
	ResetShared()
	defer ResetShared()

	a := Shared("http://node", 5, 5)
	b := Shared("http://node", 5, 5)
	c := Shared("http://other", 5, 5)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, SharedStats(), 2)
}
