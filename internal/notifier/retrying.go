package notifier

import (
	"context"
	"time"

	"github.com/eitchpi/narrartive-backend/pkg/errorutil"
	"github.com/eitchpi/narrartive-backend/pkg/retry"
)

// RetryingNotifier 在底层 Notifier 外层加固定次数重试
type RetryingNotifier struct {
	inner Notifier
	cfg   retry.Config
}

// NewRetryingNotifier 创建带重试的发送包装
// attempts 为总尝试次数（含首次），delay 为重试间隔（固定，不做指数退避）
func NewRetryingNotifier(inner Notifier, attempts int, delay time.Duration) *RetryingNotifier {
	if attempts <= 0 {
		attempts = 1
	}
	return &RetryingNotifier{
		inner: inner,
		cfg: retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			BackoffFactor: 1.0,
			MaxDelay:      delay,
		},
	}
}

// Send 发送邮件，瞬时失败自动重试
func (n *RetryingNotifier) Send(ctx context.Context, msg *Message) error {
	return retry.DoIf(ctx, func(ctx context.Context) error {
		return n.inner.Send(ctx, msg)
	}, n.cfg, errorutil.IsRetryable)
}
