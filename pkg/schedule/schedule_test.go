package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchCron(t *testing.T) {
	at := time.Date(2024, time.May, 6, 2, 30, 0, 0, time.UTC) // Monday

	assert.True(t, matchCron("30 2 * * *", at))
	assert.True(t, matchCron("*/15 0-3 * 5 1", at))
	assert.True(t, matchCron("0,30 * * * 1,3", at))
	assert.False(t, matchCron("31 2 * * *", at))
	assert.False(t, matchCron("30 2 * * 0", at))
	assert.False(t, matchCron("bad", at))
	assert.False(t, matchCron("x 2 * * *", at))
}

func TestRunDueHonoursInterval(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Hourly().Name("orders:sweep-stale").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	})

	now := time.Now()
	assert.Equal(t, []string{"orders:sweep-stale"}, s.RunDue(context.Background(), now, false))
	assert.Empty(t, s.RunDue(context.Background(), now.Add(time.Minute), false))
	assert.Len(t, s.RunDue(context.Background(), now.Add(time.Hour), false), 1)
	assert.Len(t, s.RunDue(context.Background(), now.Add(time.Hour+time.Second), true), 1)
	assert.EqualValues(t, 3, runs.Load())
}

func TestCronRunsOncePerMinute(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Cron("* * * * *").Run(func(context.Context) error { runs.Add(1); return nil })

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.RunDue(context.Background(), base, false)
	s.RunDue(context.Background(), base.Add(30*time.Second), false)
	s.RunDue(context.Background(), base.Add(time.Minute), false)
	assert.EqualValues(t, 2, runs.Load())
}

func TestFailingAndPanickingTasksAreContained(t *testing.T) {
	s := New()
	s.EveryMinute().Name("fails").Run(func(context.Context) error { return errors.New("db down") })
	s.EveryMinute().Name("panics").Run(func(context.Context) error { panic("boom") })

	ran := s.RunDue(context.Background(), time.Now(), false)
	assert.ElementsMatch(t, []string{"fails", "panics"}, ran)
	assert.Equal(t, []string{"fails  [every 1m0s]", "panics  [every 1m0s]"}, s.List())
}

func TestWithoutOverlapping(t *testing.T) {
	s := New()
	release := make(chan struct{})
	s.EveryMinute().Name("slow").WithoutOverlapping().Run(func(context.Context) error {
		<-release
		return nil
	})

	now := time.Now()
	assert.Len(t, s.dispatchDue(context.Background(), now, false), 1)
	assert.Empty(t, s.dispatchDue(context.Background(), now.Add(2*time.Minute), false))
	close(release)
	s.Wait()
}
