package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Default pacing between events.
const (
	DefaultMinWait = 10 * time.Minute
	DefaultMaxWait = 120 * time.Minute
)

// Stepper processes one event.
type Stepper interface {
	Step(ctx context.Context) Processed
}

// Loop drives a Stepper: one event, then a random pause, until cancelled.
type Loop struct {
	MinWait time.Duration
	MaxWait time.Duration

	// OnEvent is called after each event; OnWait before each pause.
	OnEvent func(p Processed)
	OnWait  func(d time.Duration)

	step    Stepper
	rng     *rand.Rand
	trigger chan struct{}
}

// NewLoop creates a loop with the default pacing.
func NewLoop(step Stepper, rng *rand.Rand) *Loop {
	return &Loop{
		MinWait: DefaultMinWait,
		MaxWait: DefaultMaxWait,
		step:    step,
		rng:     rng,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger cuts the current pause short. It never blocks; repeated calls
// during one pause collapse into one.
func (l *Loop) Trigger() bool {
	select {
	case l.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is cancelled. Cancellation interrupts a pause
// immediately; an event already in progress is finished first, so the last
// snapshot is always complete.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("chronicle loop started", "min_wait", l.MinWait, "max_wait", l.MaxWait)
	defer slog.Info("chronicle loop stopped")

	for ctx.Err() == nil {
		p := l.step.Step(ctx)
		if l.OnEvent != nil {
			l.OnEvent(p)
		}

		wait := l.nextWait()
		if l.OnWait != nil {
			l.OnWait(wait)
		}
		if !l.pause(ctx, wait) {
			return
		}
	}
}

// nextWait draws a pause uniformly from [MinWait, MaxWait].
func (l *Loop) nextWait() time.Duration {
	lo, hi := l.MinWait, l.MaxWait
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(l.rng.Int63n(int64(hi-lo)+1))
}

func (l *Loop) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-l.trigger:
		slog.Info("pause cut short")
	}
	return true
}
