package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomFaultPolicy_Rates(t *testing.T) {
	never := NewRandomFaultPolicy(0, 0, 0)
	always := NewRandomFaultPolicy(1, 0, 0)

	for i := 0; i < 100; i++ {
		assert.False(t, never.ShouldFail())
		assert.True(t, always.ShouldFail())
	}
}

func TestRandomFaultPolicy_DelayWithinBounds(t *testing.T) {
	policy := NewRandomFaultPolicy(0, 5*time.Millisecond, 20*time.Millisecond)

	start := time.Now()
	err := policy.Delay(context.Background())
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestRandomFaultPolicy_DelayHonoursCancel(t *testing.T) {
	policy := NewRandomFaultPolicy(0, time.Minute, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := policy.Delay(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRandomFaultPolicy_SwappedBounds(t *testing.T) {
	policy := NewRandomFaultPolicy(0, 10*time.Millisecond, time.Millisecond)

	assert.Equal(t, policy.MinLatency, policy.MaxLatency)
}

func TestStaticPolicies(t *testing.T) {
	assert.False(t, NoFaults{}.ShouldFail())
	assert.True(t, AlwaysFail{}.ShouldFail())
	assert.NoError(t, NoFaults{}.Delay(context.Background()))
	assert.NoError(t, AlwaysFail{}.Delay(context.Background()))
}
