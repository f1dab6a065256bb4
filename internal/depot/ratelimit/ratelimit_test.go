package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/clock"
)

func newTestLimiter(fakeClock *clock.FakeClock) *FixedWindowLimiter {
	l := NewFixedWindowLimiter()
	l.clock = fakeClock
	return l
}

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	l := newTestLimiter(clock.NewFakeClock(time.Now()))

	for i := 0; i < 2; i++ {
		result, err := l.Check("credential:abc", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.LessOrEqual(t, result.RetryAfter, 60)
		assert.Greater(t, result.RetryAfter, 0)
	}

	result, err := l.Check("credential:abc", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.LessOrEqual(t, result.RetryAfter, 60)
	assert.Greater(t, result.RetryAfter, 0)
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	l := newTestLimiter(fakeClock)

	result, err := l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	fakeClock.Step(time.Minute)

	result, err = l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFixedWindowIdentitiesAreIndependent(t *testing.T) {
	l := newTestLimiter(clock.NewFakeClock(time.Now()))

	result, err := l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = l.Check("address:10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestFixedWindowRetryAfterShrinks(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	l := newTestLimiter(fakeClock)

	_, err := l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)

	fakeClock.Step(45 * time.Second)
	result, err := l.Check("credential:abc", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 15, result.RetryAfter)
}

func TestFixedWindowSweepsExpiredBuckets(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	l := newTestLimiter(fakeClock)
	l.sweepThreshold = 10

	for i := 0; i < 20; i++ {
		_, err := l.Check(fmt.Sprintf("address:10.0.0.%d", i), 1, time.Minute)
		require.NoError(t, err)
	}
	assert.Len(t, l.buckets, 20)

	fakeClock.Step(2 * time.Minute)
	_, err := l.Check("address:10.0.1.1", 1, time.Minute)
	require.NoError(t, err)

	// All expired buckets were evicted; only the fresh one remains.
	assert.Len(t, l.buckets, 1)
}

func TestIdentityFromBearerCredential(t *testing.T) {
	identity := Identity("Bearer abcdefghijklmnopqrstuvwxyz", "10.0.0.1:51234")
	assert.Equal(t, "credential:abcdefghijkl", identity)
}

func TestIdentityFromShortCredential(t *testing.T) {
	identity := Identity("Bearer abc", "10.0.0.1:51234")
	assert.Equal(t, "credential:abc", identity)
}

func TestIdentityFallsBackToAddress(t *testing.T) {
	assert.Equal(t, "address:10.0.0.1", Identity("", "10.0.0.1:51234"))
	assert.Equal(t, "address:10.0.0.1", Identity("Basic dXNlcg==", "10.0.0.1:51234"))
	assert.Equal(t, "address:10.0.0.1", Identity("Bearer   ", "10.0.0.1:51234"))
}

func TestIdentityAddressWithoutPort(t *testing.T) {
	assert.Equal(t, "address:10.0.0.1", Identity("", "10.0.0.1"))
}
