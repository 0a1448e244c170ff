// Package tickset derives the two coarse countdowns the supervisor runs on
// (next-seed, until-done) from a periodic tick, the software analogue of
// the original's 256-unit prescaler over a ~256us fine timer.
package tickset

import (
	"context"
	"time"
)

// DefaultTickInterval approximates the original's ~65ms coarse tick
// (256 ticks of a ~256us fine timer).
const DefaultTickInterval = 65 * time.Millisecond

// Reset targets, in milliseconds, matching the original's constants.
const (
	NextSeedMS = 100   // long enough a neighbor can hear our SEED and PULL back
	UntilDoneMS = 10000 // long enough to survive several busy neighbors
)

// msToTicks mirrors the original's MS_TO_COUNTS macro: always round up to a
// longer delay rather than a shorter one.
func msToTicks(ms int, tickInterval time.Duration) uint32 {
	tickMs := tickInterval.Milliseconds()
	if tickMs <= 0 {
		tickMs = 1
	}
	return uint32(int64(ms)/tickMs) + 1
}

// Scheduler owns the NextSeed and UntilDone countdowns and the goroutine
// that decrements them once per coarse tick.
type Scheduler struct {
	NextSeed  Countdown
	UntilDone Countdown

	tickInterval   time.Duration
	nextSeedTicks  uint32
	untilDoneTicks uint32
}

// NewScheduler builds a Scheduler that ticks every tickInterval. A zero
// tickInterval selects DefaultTickInterval. Countdowns start expired
// (zero); callers typically call ResetUntilDone before entering the main
// loop.
func NewScheduler(tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		tickInterval:   tickInterval,
		nextSeedTicks:  msToTicks(NextSeedMS, tickInterval),
		untilDoneTicks: msToTicks(UntilDoneMS, tickInterval),
	}
}

// ResetNextSeed rearms the next-seed countdown to its configured interval.
func (s *Scheduler) ResetNextSeed() {
	s.NextSeed.Reset(s.nextSeedTicks)
}

// ResetUntilDone rearms the done-timeout countdown to its configured
// interval.
func (s *Scheduler) ResetUntilDone() {
	s.UntilDone.Reset(s.untilDoneTicks)
}

// TriggerNextSeedNow makes the next-seed countdown expire immediately, so
// the supervisor emits a SEED on its very next pass. Used right after
// servicing a PULL, to keep the pipeline primed for the puller's next page
// request.
func (s *Scheduler) TriggerNextSeedNow() {
	s.NextSeed.Reset(0)
}

// Tick decrements both countdowns once. Exposed directly for tests that
// don't want to depend on wall-clock timing.
func (s *Scheduler) Tick() {
	s.NextSeed.Tick()
	s.UntilDone.Tick()
}

// Run drives Tick once per tickInterval until ctx is cancelled. It is meant
// to run on its own goroutine, standing in for the original's fine timer
// ISR.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
