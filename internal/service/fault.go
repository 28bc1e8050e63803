package service

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// FaultPolicy simulates the network between the till and its back office.
// Delay may block and must honour ctx; ShouldFail decides whether the call is lost.
type FaultPolicy interface {
	Delay(ctx context.Context) error
	ShouldFail() bool
}

// RandomFaultPolicy sleeps a random duration in [MinLatency, MaxLatency]
// and fails FailureRate of the calls.
type RandomFaultPolicy struct {
	FailureRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomFaultPolicy creates a policy seeded from the clock
func NewRandomFaultPolicy(failureRate float64, minLatency, maxLatency time.Duration) *RandomFaultPolicy {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &RandomFaultPolicy{
		FailureRate: failureRate,
		MinLatency:  minLatency,
		MaxLatency:  maxLatency,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay sleeps a random latency or until ctx is done
func (p *RandomFaultPolicy) Delay(ctx context.Context) error {
	p.mu.Lock()
	d := p.MinLatency
	if spread := p.MaxLatency - p.MinLatency; spread > 0 {
		d += time.Duration(p.rnd.Int63n(int64(spread) + 1))
	}
	p.mu.Unlock()

	return sleep(ctx, d)
}

// ShouldFail reports a lost call with probability FailureRate
func (p *RandomFaultPolicy) ShouldFail() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64() < p.FailureRate
}

// NoFaults never delays and never fails
type NoFaults struct{}

// Delay only reports a cancelled ctx
func (NoFaults) Delay(ctx context.Context) error { return ctx.Err() }

// ShouldFail is always false
func (NoFaults) ShouldFail() bool { return false }

// AlwaysFail never delays and always fails
type AlwaysFail struct{}

// Delay only reports a cancelled ctx
func (AlwaysFail) Delay(ctx context.Context) error { return ctx.Err() }

// ShouldFail is always true
func (AlwaysFail) ShouldFail() bool { return true }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
