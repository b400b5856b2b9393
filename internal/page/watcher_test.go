package page

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDetector struct {
	passes atomic.Int32
}

func (d *countingDetector) Detect(context.Context) (State, error) {
	d.passes.Add(1)
	return Active, nil
}

func fastTimings() Timings {
	return Timings{
		Settle:          5 * time.Millisecond,
		NavigationDelay: 5 * time.Millisecond,
		InitialQuiet:    5 * time.Millisecond,
		NavigationQuiet: 5 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
	}
}

func newTestWatcher(d Detector, urls URLSource, idle *IdleTracker) *Watcher {
	logger, _ := test.NewNullLogger()
	return NewWatcher(d, urls, idle, WithTimings(fastTimings()), WithWatcherLogger(logger))
}

func TestWatcher_RedetectsOnURLChange(t *testing.T) {
	surface := &fakeSurface{url: jobURL}
	detector := &countingDetector{}
	w := newTestWatcher(detector, surface, NewIdleTracker())

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return detector.passes.Load() == 1 }, time.Second, time.Millisecond)

	// Same URL: no new pass.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), detector.passes.Load())

	surface.setURL("https://www.linkedin.com/jobs/view/9999/")
	assert.Eventually(t, func() bool { return detector.passes.Load() == 2 }, time.Second, time.Millisecond)
}

func TestWatcher_StartIsIdempotentAndStopEndsLoop(t *testing.T) {
	surface := &fakeSurface{url: jobURL}
	detector := &countingDetector{}
	w := newTestWatcher(detector, surface, nil)

	w.Start(context.Background())
	w.Start(context.Background())
	require.Eventually(t, func() bool { return detector.passes.Load() >= 1 }, time.Second, time.Millisecond)
	w.Stop()
	w.Stop()

	passes := detector.passes.Load()
	assert.Equal(t, int32(1), passes)

	surface.setURL("https://www.linkedin.com/jobs/view/1/")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, passes, detector.passes.Load())
}

func TestWatcher_StopBeforeFirstPass(t *testing.T) {
	detector := &countingDetector{}
	logger, _ := test.NewNullLogger()
	timings := fastTimings()
	timings.Settle = time.Hour
	w := NewWatcher(detector, &fakeSurface{url: jobURL}, nil, WithTimings(timings), WithWatcherLogger(logger))

	w.Start(context.Background())
	w.Stop()
	assert.Equal(t, int32(0), detector.passes.Load())
}

func TestIdleTracker_WaitsForQuiet(t *testing.T) {
	idle := NewIdleTracker()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				idle.Observe()
			}
		}
	}()

	time.AfterFunc(60*time.Millisecond, func() { close(stop) })

	start := time.Now()
	require.NoError(t, idle.Wait(context.Background(), 25*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Positive(t, idle.Observed())
}

func TestIdleTracker_IgnoresEarlierActivity(t *testing.T) {
	idle := NewIdleTracker()
	idle.Observe()
	idle.Observe()

	start := time.Now()
	require.NoError(t, idle.Wait(context.Background(), 10*time.Millisecond))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, int64(2), idle.Observed())
}

func TestIdleTracker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewIdleTracker().Wait(ctx, time.Hour), context.Canceled)
}
