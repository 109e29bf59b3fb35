package retry

import (
	"context"
	"math"
	"time"
)

// Operation 可重试的操作函数类型
type Operation func(ctx context.Context) error

// Config 重试配置
type Config struct {
	MaxAttempts   int           // 最大尝试次数（包括首次）
	InitialDelay  time.Duration // 初始退避延迟
	BackoffFactor float64       // 退避倍数（指数退避）
	MaxDelay      time.Duration // 最大延迟
}

// DefaultConfig 返回默认配置
//
// 默认值：
//   - MaxAttempts: 3（1次初始 + 2次重试）
//   - InitialDelay: 500ms
//   - BackoffFactor: 2.0（指数退避）
//   - MaxDelay: 10s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
	}
}

// Do 执行带重试的操作
//
// 参数：
//   - ctx: 上下文（支持取消）
//   - op: 要执行的操作
//   - cfg: 重试配置
//
// 返回：
//   - 最后一次执行的错误（如果所有尝试都失败）
//   - nil（如果任意一次尝试成功）
func Do(ctx context.Context, op Operation, cfg Config) error {
	return DoIf(ctx, op, cfg, func(error) bool { return true })
}

// DoIf 执行带重试的操作，仅当 shouldRetry 返回 true 时重试
//
// 不可重试的错误（如业务规则错误）直接返回，不消耗剩余尝试次数。
func DoIf(ctx context.Context, op Operation, cfg Config, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// 执行操作
		err := op(ctx)
		if err == nil {
			return nil // 成功
		}

		lastErr = err

		// 不可重试错误直接返回
		if !shouldRetry(err) {
			return lastErr
		}

		// 最后一次尝试不需要等待
		if attempt < cfg.MaxAttempts {
			// 计算退避延迟（指数退避）
			delay := time.Duration(float64(cfg.InitialDelay) *
				math.Pow(cfg.BackoffFactor, float64(attempt-1)))

			// 限制最大延迟
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}

			// 等待退避延迟（支持上下文取消）
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}
