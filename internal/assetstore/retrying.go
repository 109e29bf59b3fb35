package assetstore

import (
	"context"
	"io"
	"time"

	"github.com/eitchpi/narrartive-backend/pkg/errorutil"
	"github.com/eitchpi/narrartive-backend/pkg/retry"
)

// RetryingStore 在底层 Store 外层统一加超时与瞬时错误重试
//
// 只有标记为可重试的错误（网络抖动、远端瞬时故障）会触发重试；
// NotFound 之类的语义错误直接返回。
type RetryingStore struct {
	inner   Store
	timeout time.Duration
	cfg     retry.Config
}

// NewRetryingStore 创建带超时与重试的包装
func NewRetryingStore(inner Store, timeout time.Duration, cfg retry.Config) *RetryingStore {
	return &RetryingStore{
		inner:   inner,
		timeout: timeout,
		cfg:     cfg,
	}
}

func (s *RetryingStore) do(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.DoIf(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return op(callCtx)
	}, s.cfg, errorutil.IsRetryable)
}

// List 列出目录内容
func (s *RetryingStore) List(ctx context.Context, parentID string, filter Filter) ([]Entry, error) {
	var result []Entry
	err := s.do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.inner.List(ctx, parentID, filter)
		return opErr
	})
	return result, err
}

// Get 下载文件内容
//
// 只对打开动作做重试，返回的流直接透传：交付资产可能很大，不做内存
// 整段缓冲。打开也不套单次调用超时，否则返回前取消会波及读取。
func (s *RetryingStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := retry.DoIf(ctx, func(ctx context.Context) error {
		var opErr error
		rc, opErr = s.inner.Get(ctx, id)
		return opErr
	}, s.cfg, errorutil.IsRetryable)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Put 上传文件
func (s *RetryingStore) Put(ctx context.Context, parentID, name string, r io.Reader) (string, error) {
	// 上传的 Reader 不可重放，Put 不做自动重试，只加超时
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.inner.Put(callCtx, parentID, name, r)
}

// Update 移动文件
func (s *RetryingStore) Update(ctx context.Context, id string, upd Update) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Update(ctx, id, upd)
	})
}

// Delete 删除文件
func (s *RetryingStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Delete(ctx, id)
	})
}
