package tracker

import (
	"context"
	"errors"
)

// ErrNotFound 命名记录尚不存在
var ErrNotFound = errors.New("tracker record not found")

// 命名记录名称
const (
	recordProcessed = "processed"
	recordFailed    = "failed"
)

// Backend 追踪记录持久化后端
//
// 每条命名记录整体读、整体写；Save 必须是原子替换，可安全重复调用。
type Backend interface {
	// Load 读取命名记录，不存在时返回 ErrNotFound
	Load(ctx context.Context, name string) ([]byte, error)

	// Save 原子替换命名记录
	Save(ctx context.Context, name string, data []byte) error
}
