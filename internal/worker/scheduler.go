package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// Job 定时任务
type Job struct {
	Name     string
	Interval time.Duration            // 周期任务的触发间隔
	DailyAt  int                      // >=0 时为每日任务：本地时区该小时触发，忽略 Interval
	Run      func(ctx context.Context) error
}

// Scheduler 定时任务调度器
//
// 所有任务共享一个 in-flight 守卫：任一任务还在执行时，其他任务（以及
// 自身的下一个 tick）直接跳过，绝不并发。Tracker 的读改写没有乐观锁，
// 并发 pass 会互相覆盖——这是整个系统最重要的正确性约束。
type Scheduler struct {
	log        logger.Logger
	inFlight   *atomic.Bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log:      log,
		inFlight: atomic.NewBool(false),
	}
}

// Start 启动所有任务循环
func (s *Scheduler) Start(parentCtx context.Context, jobs []Job) {
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel

	for _, job := range jobs {
		j := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if j.DailyAt >= 0 && j.Interval <= 0 {
				s.dailyLoop(ctx, j)
			} else {
				s.intervalLoop(ctx, j)
			}
		}()
		s.log.Infof(ctx, "[Scheduler] Job registered: %s", j.Name)
	}
}

// Stop 停止调度并等待在途任务结束
func (s *Scheduler) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
}

// intervalLoop 周期任务循环
func (s *Scheduler) intervalLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infof(ctx, "[Scheduler] Job %s stopped", job.Name)
			return
		case <-ticker.C:
			s.runGuarded(ctx, job)
		}
	}
}

// dailyLoop 每日任务循环（本地时区固定小时触发）
func (s *Scheduler) dailyLoop(ctx context.Context, job Job) {
	for {
		wait := untilNextHour(time.Now(), job.DailyAt)
		select {
		case <-ctx.Done():
			s.log.Infof(ctx, "[Scheduler] Job %s stopped", job.Name)
			return
		case <-time.After(wait):
			s.runGuarded(ctx, job)
		}
	}
}

// runGuarded 执行任务；已有任务在途时跳过本次 tick 而不是排队
func (s *Scheduler) runGuarded(ctx context.Context, job Job) {
	if !s.inFlight.CAS(false, true) {
		s.log.Warnf(ctx, "[Scheduler] Job %s skipped: another job still running", job.Name)
		return
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	s.log.Debugf(ctx, "[Scheduler] Job %s started", job.Name)
	if err := job.Run(ctx); err != nil {
		s.log.Errorf(ctx, "[Scheduler] Job %s failed: %v", job.Name, err)
		return
	}
	s.log.Debugf(ctx, "[Scheduler] Job %s finished in %v", job.Name, time.Since(start))
}

// untilNextHour 计算到下一个本地 hour 点的等待时长
func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
