package reminder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type countingSweeper struct {
	runs atomic.Int32
	err  error
}

func (c *countingSweeper) Run(context.Context) (*Report, error) {
	c.runs.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &Report{Date: "2025-01-07", IsWorkday: true}, nil
}

func TestSchedulerDue(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, 16, discardLogger())

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"tuesday at hour", time.Date(2025, time.January, 7, 16, 0, 0, 0, time.UTC), true},
		{"tuesday late in hour", time.Date(2025, time.January, 7, 16, 59, 0, 0, time.UTC), true},
		{"tuesday before hour", time.Date(2025, time.January, 7, 15, 59, 0, 0, time.UTC), false},
		{"tuesday after hour", time.Date(2025, time.January, 7, 17, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2025, time.January, 11, 16, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2025, time.January, 12, 16, 0, 0, 0, time.UTC), false},
		{"holiday weekday", time.Date(2025, time.December, 25, 16, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.due(tt.now))
		})
	}
}

func TestSchedulerTickOncePerDay(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, 16, discardLogger())

	now := time.Date(2025, time.January, 7, 16, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.tick(context.Background())
	now = now.Add(time.Minute)
	s.tick(context.Background())
	assert.Equal(t, int32(1), sweeper.runs.Load())

	now = now.AddDate(0, 0, 1)
	s.tick(context.Background())
	assert.Equal(t, int32(2), sweeper.runs.Load())
}

func TestSchedulerTickSurvivesSweepError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	s := NewScheduler(sweeper, 16, discardLogger())
	s.now = func() time.Time { return time.Date(2025, time.January, 7, 16, 0, 0, 0, time.UTC) }

	s.tick(context.Background())
	s.tick(context.Background())
	assert.Equal(t, int32(1), sweeper.runs.Load(), "a failed sweep still counts as today's run")
}

func TestSchedulerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, 16, discardLogger())
	s.interval = time.Millisecond
	s.now = func() time.Time { return time.Date(2025, time.January, 7, 16, 0, 0, 0, time.UTC) }

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return sweeper.runs.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), sweeper.runs.Load())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, 16, discardLogger())
	s.Stop()
}
