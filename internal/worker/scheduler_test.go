package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"

	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

func TestScheduler_RunsIntervalJob(t *testing.T) {
	s := NewScheduler(logger.NewNopLogger())
	runs := atomic.NewInt64(0)

	s.Start(context.Background(), []Job{{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		DailyAt:  -1,
		Run: func(ctx context.Context) error {
			runs.Inc()
			return nil
		},
	}})

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int64(3))
}

func TestScheduler_SkipsWhileJobInFlight(t *testing.T) {
	s := NewScheduler(logger.NewNopLogger())
	slowRuns := atomic.NewInt64(0)
	fastRuns := atomic.NewInt64(0)
	release := make(chan struct{})

	// 慢任务占住共享守卫时，另一个任务的 tick 必须被跳过而不是并发执行。
	// 慢任务的首个 tick 远早于另一任务，保证它先拿到守卫。
	s.Start(context.Background(), []Job{
		{
			Name:     "slow",
			Interval: 5 * time.Millisecond,
			DailyAt:  -1,
			Run: func(ctx context.Context) error {
				slowRuns.Inc()
				<-release
				return nil
			},
		},
		{
			Name:     "fast",
			Interval: 60 * time.Millisecond,
			DailyAt:  -1,
			Run: func(ctx context.Context) error {
				fastRuns.Inc()
				return nil
			},
		},
	})

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(1), slowRuns.Load())
	assert.Equal(t, int64(0), fastRuns.Load())

	close(release)
	s.Stop()
}

func TestScheduler_JobErrorDoesNotStopLoop(t *testing.T) {
	s := NewScheduler(logger.NewNopLogger())
	runs := atomic.NewInt64(0)

	s.Start(context.Background(), []Job{{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		DailyAt:  -1,
		Run: func(ctx context.Context) error {
			runs.Inc()
			return assert.AnError
		},
	}})

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestUntilNextHour(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, 90*time.Minute, untilNextHour(now, 12))
	// 目标小时已过：等到第二天
	assert.Equal(t, 21*time.Hour+30*time.Minute, untilNextHour(now, 8))
	// 正好整点：下一次触发是明天
	exact := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, untilNextHour(exact, 8))
}
