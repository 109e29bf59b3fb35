package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eitchpi/narrartive-backend/internal/notifier"
	"github.com/eitchpi/narrartive-backend/internal/tracker"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// Policy 失败与告警策略
//
// 失败记录持久化在 tracker 中；告警邮件按 key 每天最多一封（内存去重，
// 每日重置）。持久化的失败记录只在订单后续成功时逐条清除，从不按
// 时间整体清空。
type Policy struct {
	trackerStore *tracker.Store
	notifier     notifier.Notifier
	alertTo      string
	log          logger.Logger

	mu   sync.Mutex
	seen map[string]string // key -> 已告警日期（2006-01-02）

	// 失败记录的读改写没有乐观锁，并发订单同时写会互相覆盖丢条目，
	// 必须在这里串行
	recordMu sync.Mutex

	now func() time.Time // 测试注入
}

// NewPolicy 创建失败与告警策略
func NewPolicy(trackerStore *tracker.Store, n notifier.Notifier, alertTo string, log logger.Logger) *Policy {
	return &Policy{
		trackerStore: trackerStore,
		notifier:     n,
		alertTo:      alertTo,
		log:          log,
		seen:         make(map[string]string),
		now:          time.Now,
	}
}

// SetNow 注入时钟（测试用）
func (p *Policy) SetNow(now func() time.Time) {
	p.now = now
}

// AlertDaily 发送一次告警，不写失败记录
//
// 按 key 每天最多发一封。用于"不算失败"的情形：重复处理冲突、
// 追踪记录损坏、dead-letter 跳过。返回值表示本次是否真正发出了告警。
func (p *Policy) AlertDaily(ctx context.Context, key, message string) bool {
	now := p.now()
	day := now.Format("2006-01-02")

	p.mu.Lock()
	suppressed := p.seen[key] == day
	p.seen[key] = day
	p.mu.Unlock()

	if suppressed {
		p.log.Debugf(ctx, "[Alerting] Alert suppressed for key %s (already sent today)", key)
		return false
	}

	p.log.Warnf(ctx, "[Alerting] Sending alert for key %s: %s", key, message)
	p.sendAlert(ctx,
		fmt.Sprintf("[fulfillment] attention required: %s", key),
		fmt.Sprintf("<p>Key: <b>%s</b></p><p>%s</p><p>Time: %s</p>",
			key, message, now.Format(time.RFC3339)))
	return true
}

// LogDailyError 记录一次失败并告警
//
// 失败记录每次都更新（连续失败计数递增）；告警邮件按 key 每天去重。
// 返回值表示本次是否真正发出了告警。
func (p *Policy) LogDailyError(ctx context.Context, key, message string) bool {
	now := p.now()
	day := now.Format("2006-01-02")

	p.mu.Lock()
	suppressed := p.seen[key] == day
	p.seen[key] = day
	p.mu.Unlock()

	// 更新持久化失败记录（load-before-mutate，整个回合串行）
	p.recordMu.Lock()
	record, err := p.trackerStore.LoadFailed(ctx)
	if err != nil {
		p.log.Errorf(ctx, "[Alerting] Load failed record failed: %v", err)
	} else {
		record.MarkFailed(key, message, now)
		if err := p.trackerStore.SaveFailed(ctx, record); err != nil {
			p.log.Errorf(ctx, "[Alerting] Save failed record failed: %v", err)
		}
	}
	p.recordMu.Unlock()

	if suppressed {
		p.log.Debugf(ctx, "[Alerting] Alert suppressed for key %s (already sent today)", key)
		return false
	}

	p.log.Warnf(ctx, "[Alerting] Sending alert for key %s: %s", key, message)
	p.sendAlert(ctx,
		fmt.Sprintf("[fulfillment] processing failure: %s", key),
		fmt.Sprintf("<p>Key: <b>%s</b></p><p>%s</p><p>Time: %s</p>",
			key, message, now.Format(time.RFC3339)))
	return true
}

// ClearFailure 订单后续成功时移除对应的失败记录
func (p *Policy) ClearFailure(ctx context.Context, key string) {
	p.recordMu.Lock()
	defer p.recordMu.Unlock()

	record, err := p.trackerStore.LoadFailed(ctx)
	if err != nil {
		p.log.Errorf(ctx, "[Alerting] Load failed record failed: %v", err)
		return
	}
	if _, ok := record.Get(key); !ok {
		return
	}
	record.Clear(key)
	if err := p.trackerStore.SaveFailed(ctx, record); err != nil {
		p.log.Errorf(ctx, "[Alerting] Save failed record failed: %v", err)
	}
}

// SendDailySummary 发送每日失败汇总
//
// 没有失败记录时不发邮件。汇总不清空失败记录。
func (p *Policy) SendDailySummary(ctx context.Context) error {
	record, err := p.trackerStore.LoadFailed(ctx)
	if err != nil {
		return fmt.Errorf("load failed record for summary: %w", err)
	}
	if record.IsEmpty() {
		p.log.Infof(ctx, "[Alerting] No failures to summarize")
		return nil
	}

	keys := make([]string, 0, record.Len())
	for key := range record.FailedOrders {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<p>Unresolved fulfillment failures:</p><table border=\"1\">")
	b.WriteString("<tr><th>Key</th><th>Reason</th><th>Last failure</th><th>Count</th></tr>")
	for _, key := range keys {
		entry := record.FailedOrders[key]
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td></tr>",
			key, entry.Reason, entry.At.Format(time.RFC3339), entry.Count)
	}
	b.WriteString("</table>")

	p.log.Infof(ctx, "[Alerting] Sending daily summary with %d entries", record.Len())
	return p.notifier.Send(ctx, &notifier.Message{
		To:      p.alertTo,
		Subject: fmt.Sprintf("[fulfillment] daily summary: %d unresolved failures", record.Len()),
		HTML:    b.String(),
	})
}

// ResetDaily 清空当日告警去重集合
// 只清内存去重状态，持久化失败记录不受影响
func (p *Policy) ResetDaily() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = make(map[string]string)
}

// sendAlert 即时告警（尽力而为，失败只记日志）
func (p *Policy) sendAlert(ctx context.Context, subject, html string) {
	if p.alertTo == "" {
		return
	}
	err := p.notifier.Send(ctx, &notifier.Message{
		To:      p.alertTo,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		p.log.Errorf(ctx, "[Alerting] Alert send failed: %v", err)
	}
}
