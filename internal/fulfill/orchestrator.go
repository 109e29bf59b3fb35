package fulfill

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/eitchpi/narrartive-backend/internal/alerting"
	"github.com/eitchpi/narrartive-backend/internal/assetstore"
	"github.com/eitchpi/narrartive-backend/internal/notifier"
	"github.com/eitchpi/narrartive-backend/internal/packager"
	"github.com/eitchpi/narrartive-backend/internal/resolver"
	"github.com/eitchpi/narrartive-backend/internal/tracker"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// 扫描模式
const (
	ScanModeAllUnprocessed = "all_unprocessed" // 处理 incoming 中所有导出文件
	ScanModeLatestOnly     = "latest_only"     // 只处理最新一个导出文件
)

// DeliveryEvent 订单终态事件（交付完成 / 失败）
type DeliveryEvent struct {
	OrderID  string
	FileName string
	Buyer    string
	Status   string // DELIVERED / FAILED
}

// 事件状态
const (
	EventStatusDelivered = "DELIVERED"
	EventStatusFailed    = "FAILED"
)

// EventPublisher 终态事件发布接口（尽力而为，失败不影响订单结果）
type EventPublisher interface {
	Publish(ctx context.Context, evt DeliveryEvent) error
}

// Options 编排器配置
type Options struct {
	IncomingFolder     string
	ProcessedFolder    string
	DeliverablesFolder string
	ThankYouFolder     string

	ScanMode               string
	PasswordSuffixLen      int
	MaxConsecutiveFailures int // 0 表示不启用 dead-letter 阈值
	ScratchDir             string
	Workers                int // 单 pass 内并发处理订单数
}

// Orchestrator 订单履约编排器
//
// 每个订单走一遍 state.go 描述的状态机，订单间故障隔离：单个订单的
// 任何失败都只记录该订单，不影响同文件的其他订单与其他文件。
type Orchestrator struct {
	store        assetstore.Store
	trackerStore *tracker.Store
	resolver     *resolver.Resolver
	packager     packager.Packager
	notifier     notifier.Notifier
	policy       *alerting.Policy
	publisher    EventPublisher // 可为 nil
	opts         Options
	log          logger.Logger

	// tracker 读改写必须串行，防止 pass 内并发订单互相覆盖
	trackerMu sync.Mutex

	passCount  *atomic.Int64
	delivered  *atomic.Int64
	failed     *atomic.Int64
	lastPassAt *atomic.Int64
	lastError  *atomic.String
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	store assetstore.Store,
	trackerStore *tracker.Store,
	res *resolver.Resolver,
	pack packager.Packager,
	n notifier.Notifier,
	policy *alerting.Policy,
	publisher EventPublisher,
	opts Options,
	log logger.Logger,
) *Orchestrator {
	if opts.ScanMode == "" {
		opts.ScanMode = ScanModeAllUnprocessed
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PasswordSuffixLen <= 0 {
		opts.PasswordSuffixLen = 4
	}

	return &Orchestrator{
		store:        store,
		trackerStore: trackerStore,
		resolver:     res,
		packager:     pack,
		notifier:     n,
		policy:       policy,
		publisher:    publisher,
		opts:         opts,
		log:          log,
		passCount:    atomic.NewInt64(0),
		delivered:    atomic.NewInt64(0),
		failed:       atomic.NewInt64(0),
		lastPassAt:   atomic.NewInt64(0),
		lastError:    atomic.NewString(""),
	}
}

// Stats 运行统计（状态端点的只读投影）
type Stats struct {
	PassCount  int64     `json:"pass_count"`
	Delivered  int64     `json:"delivered"`
	Failed     int64     `json:"failed"`
	LastPassAt time.Time `json:"last_pass_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// GetStats 读取运行统计
func (o *Orchestrator) GetStats() Stats {
	return Stats{
		PassCount:  o.passCount.Load(),
		Delivered:  o.delivered.Load(),
		Failed:     o.failed.Load(),
		LastPassAt: time.Unix(o.lastPassAt.Load(), 0),
		LastError:  o.lastError.Load(),
	}
}

// publishEvent 发布终态事件（尽力而为）
func (o *Orchestrator) publishEvent(ctx context.Context, evt DeliveryEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, evt); err != nil {
		o.log.Warnf(ctx, "[Orchestrator] Publish delivery event failed: %v", err)
	}
}
