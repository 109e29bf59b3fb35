package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/eitchpi/narrartive-backend/internal/alerting"
	"github.com/eitchpi/narrartive-backend/internal/assetstore"
	"github.com/eitchpi/narrartive-backend/internal/fulfill"
	"github.com/eitchpi/narrartive-backend/internal/notifier"
	"github.com/eitchpi/narrartive-backend/internal/packager"
	"github.com/eitchpi/narrartive-backend/internal/resolver"
	"github.com/eitchpi/narrartive-backend/internal/status"
	"github.com/eitchpi/narrartive-backend/internal/tracker"
	"github.com/eitchpi/narrartive-backend/pkg/config"
	"github.com/eitchpi/narrartive-backend/pkg/infra/mysql"
	"github.com/eitchpi/narrartive-backend/pkg/infra/redis"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
	"github.com/eitchpi/narrartive-backend/pkg/retry"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx          context.Context
	cfg          *config.Config
	orchestrator *fulfill.Orchestrator
	policy       *alerting.Policy
	scheduler    *Scheduler
	statusServer *status.Server
	trackerDAO   *mysql.TrackerDAO // 可为 nil
	redisPubSub  *redis.PubSub     // 可为 nil
	closing      *atomic.Bool
	shutdownCh   chan struct{}
	mu           sync.RWMutex
	logger       logger.Logger
}

// NewManagerInstance 创建 Manager，完成全部依赖装配
func NewManagerInstance(cfg *config.Config, log logger.Logger) (Manager, error) {
	ctx := context.Background()

	m := &ManagerInstance{
		ctx:        ctx,
		cfg:        cfg,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		logger:     log,
	}

	// 1. 资产库（统一包一层超时 + 瞬时错误重试）
	rawStore, err := newAssetStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset store: %w", err)
	}
	store := assetstore.NewRetryingStore(rawStore, cfg.Pipeline.StoreTimeout, retry.DefaultConfig())

	// 2. 追踪存储后端
	backend, err := m.newTrackerBackend(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker backend: %w", err)
	}
	trackerStore := tracker.NewStore(backend, log)

	// 3. 邮件通道：买家邮件与运维告警共用一个带重试的发送器
	smtpNotifier, err := notifier.NewSMTPNotifier(cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp notifier: %w", err)
	}
	sender := notifier.NewRetryingNotifier(smtpNotifier, cfg.Pipeline.NotifyRetries, cfg.Pipeline.NotifyRetryDelay)

	// 4. 失败与告警策略（tracker 的损坏告警回填注入）
	policy := alerting.NewPolicy(trackerStore, sender, cfg.SMTP.AlertTo, log)
	trackerStore.SetAlerter(policy)
	m.policy = policy

	// 5. 交付事件发布（可选）
	var publisher fulfill.EventPublisher
	if cfg.Redis.Enabled {
		pubsub, err := redis.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis pubsub: %w", err)
		}
		m.redisPubSub = pubsub
		publisher = &redisPublisher{pubsub: pubsub, channel: cfg.Redis.Channel}
	}

	// 6. 编排器
	m.orchestrator = fulfill.NewOrchestrator(
		store,
		trackerStore,
		resolver.NewResolver(store, cfg.Store.Collections, cfg.Pipeline.FormatVariants),
		packager.NewZipPackager(),
		sender,
		policy,
		publisher,
		fulfill.Options{
			IncomingFolder:         cfg.Store.IncomingFolder,
			ProcessedFolder:        cfg.Store.ProcessedFolder,
			DeliverablesFolder:     cfg.Store.DeliverablesFolder,
			ThankYouFolder:         cfg.Store.ThankYouFolder,
			ScanMode:               cfg.Pipeline.ScanMode,
			PasswordSuffixLen:      cfg.Pipeline.PasswordSuffixLen,
			MaxConsecutiveFailures: cfg.Pipeline.MaxConsecutiveFailures,
			ScratchDir:             cfg.Pipeline.ScratchDir,
			Workers:                cfg.Pipeline.Workers,
		},
		log,
	)

	// 7. 状态端点（可选）
	if cfg.Status.Addr != "" {
		m.statusServer = status.NewServer(m.orchestrator, trackerStore, log)
	}

	m.scheduler = NewScheduler(log)

	log.Infof(ctx, "[Manager] Initialized, tracker backend: %s, scan mode: %s",
		cfg.Tracker.Backend, cfg.Pipeline.ScanMode)

	return m, nil
}

// newAssetStore 按配置创建资产库实现
func newAssetStore(cfg *config.Config) (assetstore.Store, error) {
	switch cfg.Store.Provider {
	case "local":
		return assetstore.NewLocalStore(cfg.Store.Root)
	case "memory":
		return assetstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

// newTrackerBackend 按配置创建追踪存储后端
func (m *ManagerInstance) newTrackerBackend(store assetstore.Store) (tracker.Backend, error) {
	switch m.cfg.Tracker.Backend {
	case "file":
		return tracker.NewFileBackend(m.cfg.Tracker.Dir)
	case "assetstore":
		return tracker.NewAssetStoreBackend(store, m.cfg.Store.ConfigFolder)
	case "mysql":
		dao, err := mysql.NewTrackerDAO(m.cfg.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		m.trackerDAO = dao
		return tracker.NewMySQLBackend(dao), nil
	default:
		return nil, fmt.Errorf("unknown tracker backend: %s", m.cfg.Tracker.Backend)
	}
}

// Start 启动 Manager
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	// 1. 状态端点
	if m.statusServer != nil {
		m.statusServer.Start(m.cfg.Status.Addr)
	}

	// 2. 注册并启动定时任务（共享 in-flight 守卫，绝不并发）
	jobs := []Job{
		{
			Name:     "order-scan",
			Interval: m.cfg.Schedule.ScanInterval,
			DailyAt:  -1,
			Run:      m.runScan,
		},
		{
			Name:     "deliverable-cleanup",
			Interval: m.cfg.Schedule.CleanupInterval,
			DailyAt:  -1,
			Run: func(ctx context.Context) error {
				return m.orchestrator.CleanupDeliverables(ctx, m.cfg.Schedule.CleanupMaxAge)
			},
		},
		{
			Name:    "daily-summary",
			DailyAt: m.cfg.Schedule.SummaryHour,
			Run:     m.runDailySummary,
		},
	}
	m.scheduler.Start(m.ctx, jobs)

	m.logger.Infof(m.ctx, "[Manager] Start success, %d job(s) scheduled", len(jobs))

	// 3. 阻塞等待退出信号
	<-m.shutdownCh

	return nil
}

// Shutdown 优雅退出
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 原子操作，保证并发安全
	if m.closing.CAS(false, true) {
		// 1. 停止调度，等待在途 pass 结束
		m.scheduler.Stop()

		// 2. 关闭状态端点
		if m.statusServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.statusServer.Shutdown(ctx)
			cancel()
		}

		// 3. 释放外部连接
		if m.trackerDAO != nil {
			m.trackerDAO.Close()
		}
		if m.redisPubSub != nil {
			m.redisPubSub.Close()
		}

		// 4. 关闭信号通道
		close(m.shutdownCh)

		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

// runScan 订单扫描任务：只有 pass 级初始化失败会走到这里的错误分支
func (m *ManagerInstance) runScan(ctx context.Context) error {
	if err := m.orchestrator.ProcessAllOrders(ctx); err != nil {
		m.policy.AlertDaily(ctx, "pass-setup",
			fmt.Sprintf("order scan could not start: %v", err))
		return err
	}
	return nil
}

// runDailySummary 每日汇总 + 去重集合重置
func (m *ManagerInstance) runDailySummary(ctx context.Context) error {
	err := m.policy.SendDailySummary(ctx)
	m.policy.ResetDaily()
	return err
}
