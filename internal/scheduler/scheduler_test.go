package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPulse/pkg/logger"
)

// fakeClock advances by the requested sleep and cancels the run once its
// step budget is spent, so Run terminates deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	steps  int
	cancel context.CancelFunc
	sleeps []time.Duration
}

func newFakeClock(start time.Time, steps int) *fakeClock {
	return &fakeClock{now: start, steps: steps}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.steps--
	if c.steps <= 0 {
		c.cancel()
		return context.Canceled
	}
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(string)          {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordCycle(string)            {}
func (nopMetrics) RecordSignal(string)           {}
func (nopMetrics) SetAccuracy(string, float64)   {}

type taskLog struct {
	mu      sync.Mutex
	calls   []string
	anomaly int32
}

func (l *taskLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *taskLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *taskLog) tasks() Tasks {
	return Tasks{
		Collect:      func(context.Context) error { l.record("collect"); return nil },
		ShortHorizon: func(context.Context) error { l.record("short"); return nil },
		LongHorizon:  func(context.Context) error { l.record("long"); return nil },
		Anomaly:      func(context.Context) { atomic.AddInt32(&l.anomaly, 1) },
	}
}

func runScheduler(t *testing.T, clock *fakeClock, tasks Tasks) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.cancel = cancel

	s := New(clock, tasks, nopMetrics{}, logger.Nop(), Config{})
	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func minuteOf(m int) time.Time {
	return time.Date(2026, 3, 1, 10, m, 0, 0, time.UTC)
}

func TestCollectionSlotRunsCollectShortThenLong(t *testing.T) {
	log := &taskLog{}
	clock := newFakeClock(minuteOf(2), 1)

	runScheduler(t, clock, log.tasks())

	assert.Equal(t, []string{"collect", "short", "long"}, log.snapshot())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&log.anomaly) == 1 },
		time.Second, 5*time.Millisecond)
}

func TestShortHorizonSlot(t *testing.T) {
	log := &taskLog{}
	clock := newFakeClock(minuteOf(12), 1)

	runScheduler(t, clock, log.tasks())

	assert.Equal(t, []string{"short"}, log.snapshot())
}

func TestIdleMinutePollsUntilNextSlot(t *testing.T) {
	log := &taskLog{}
	// Minute 5: the next slot is short-horizon at minute 12, seven minutes
	// of one-second polls away.
	clock := newFakeClock(minuteOf(5), 7*60+5)

	runScheduler(t, clock, log.tasks())

	assert.Equal(t, []string{"short"}, log.snapshot())
}

func TestMatchedSlotSleepsThroughItsOwnMinute(t *testing.T) {
	log := &taskLog{}
	clock := newFakeClock(minuteOf(22), 1)

	runScheduler(t, clock, log.tasks())

	assert.Equal(t, []string{"collect", "short", "long"}, log.snapshot())
	require.NotEmpty(t, clock.sleeps)
	assert.Equal(t, time.Minute, clock.sleeps[0], "cooldown prevents a double fire")
}

func TestShortHorizonFiresEveryTenMinutes(t *testing.T) {
	log := &taskLog{}
	// Minute 12 through minute 22: a short-horizon slot, nine minutes of
	// polling, then a collection slot that must also run short-horizon.
	clock := newFakeClock(minuteOf(12), 10*60+10)

	runScheduler(t, clock, log.tasks())

	assert.Equal(t, []string{"short", "collect", "short", "long"}, log.snapshot())
}

func TestOverrunningSlotSkipsMissedSlots(t *testing.T) {
	log := &taskLog{}
	clock := newFakeClock(minuteOf(2), 2)

	tasks := log.tasks()
	tasks.Collect = func(context.Context) error {
		log.record("collect")
		clock.advance(25 * time.Minute) // overruns past minutes 12 and 22
		return nil
	}

	runScheduler(t, clock, tasks)

	// After the cooldown the clock sits at minute 28; the missed minute-12
	// and minute-22 slots are not replayed.
	assert.Equal(t, []string{"collect", "short", "long"}, log.snapshot())
}

func TestSlotErrorDoesNotStopTheLoop(t *testing.T) {
	log := &taskLog{}
	clock := newFakeClock(minuteOf(12), 60+1)

	tasks := log.tasks()
	tasks.ShortHorizon = func(context.Context) error {
		log.record("short")
		return errors.New("predictor down")
	}

	runScheduler(t, clock, tasks)

	// First fire at minute 12 fails; the cooldown lands on minute 13 and the
	// loop keeps polling rather than exiting.
	calls := log.snapshot()
	require.NotEmpty(t, calls)
	assert.Equal(t, "short", calls[0])
}

func TestNilTasksAreSkipped(t *testing.T) {
	clock := newFakeClock(minuteOf(2), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.cancel = cancel

	s := New(clock, Tasks{}, nopMetrics{}, logger.Nop(), Config{})
	assert.NotPanics(t, func() { _ = s.Run(ctx) })
}
