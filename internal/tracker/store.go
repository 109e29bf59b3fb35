package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// Alerter 运维告警接口（由 alerting 包实现，按天去重）
// 实现不得回调 tracker，否则损坏告警会形成递归
type Alerter interface {
	AlertDaily(ctx context.Context, key, message string) bool
}

// Store 追踪存储
//
// 每次操作都 load-before-mutate、save-after-mutate，不在调度 pass 之间
// 缓存内存副本；并发写保护由调用方（单 pass 守卫 + 写互斥）负责。
type Store struct {
	backend Backend
	log     logger.Logger
	alerter Alerter
}

// NewStore 创建追踪存储
func NewStore(backend Backend, log logger.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log,
	}
}

// SetAlerter 注入告警器（在 alerting 构建后回填，避免初始化环）
func (s *Store) SetAlerter(a Alerter) {
	s.alerter = a
}

// LoadProcessed 读取已交付记录
//
// 记录不存在返回空记录；记录损坏时告警并返回空记录，绝不把解析错误
// 向上传播——处理流程必须以安全的空状态继续，接受一次性的重复处理风险。
func (s *Store) LoadProcessed(ctx context.Context) (*ProcessedRecord, error) {
	data, err := s.backend.Load(ctx, recordProcessed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewProcessedRecord(), nil
		}
		return nil, fmt.Errorf("load processed record failed: %w", err)
	}

	var record ProcessedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.reportCorrupt(ctx, recordProcessed, err)
		return NewProcessedRecord(), nil
	}
	if record.ProcessedOrders == nil {
		record.ProcessedOrders = make(map[string][]string)
	}
	return &record, nil
}

// SaveProcessed 整体持久化已交付记录
func (s *Store) SaveProcessed(ctx context.Context, record *ProcessedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal processed record failed: %w", err)
	}
	if err := s.backend.Save(ctx, recordProcessed, data); err != nil {
		return fmt.Errorf("save processed record failed: %w", err)
	}
	return nil
}

// LoadFailed 读取失败记录（契约与 LoadProcessed 相同，独立命名空间）
func (s *Store) LoadFailed(ctx context.Context) (*FailedRecord, error) {
	data, err := s.backend.Load(ctx, recordFailed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewFailedRecord(), nil
		}
		return nil, fmt.Errorf("load failed record failed: %w", err)
	}

	var record FailedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.reportCorrupt(ctx, recordFailed, err)
		return NewFailedRecord(), nil
	}
	if record.FailedOrders == nil {
		record.FailedOrders = make(map[string]FailedEntry)
	}
	return &record, nil
}

// SaveFailed 整体持久化失败记录
func (s *Store) SaveFailed(ctx context.Context, record *FailedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed record failed: %w", err)
	}
	if err := s.backend.Save(ctx, recordFailed, data); err != nil {
		return fmt.Errorf("save failed record failed: %w", err)
	}
	return nil
}

// reportCorrupt 记录损坏时记日志并告警，随后以空记录继续
func (s *Store) reportCorrupt(ctx context.Context, name string, parseErr error) {
	s.log.Errorf(ctx, "[Tracker] Record %s is corrupt, resetting to empty: %v", name, parseErr)
	if s.alerter != nil {
		s.alerter.AlertDaily(ctx, "tracker-corrupt-"+name,
			fmt.Sprintf("tracker record %q is corrupt and was reset to empty: %v", name, parseErr))
	}
}
