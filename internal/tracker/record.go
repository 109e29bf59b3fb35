package tracker

import (
	"time"
)

// ProcessedRecord 已交付订单记录：文件 key -> 已成功交付的订单 id 集合
//
// 订单 id 一旦进入某个文件 key 的集合，该文件下的这个订单不再被重新处理
// （at-most-once 交付）。记录在每个订单交付成功后立即整体持久化。
type ProcessedRecord struct {
	ProcessedOrders map[string][]string `json:"processed_orders"`
	// FileIDs 记录文件 key 最近对应的资产库文件 id，用于区分
	// "归档失败留在 incoming 的同一个文件" 和 "同名文件被重新投递"
	FileIDs  map[string]string `json:"file_ids,omitempty"`
	LastFile string            `json:"last_file,omitempty"`
}

// NewProcessedRecord 创建空记录
func NewProcessedRecord() *ProcessedRecord {
	return &ProcessedRecord{
		ProcessedOrders: make(map[string][]string),
	}
}

// IsProcessed 判断某文件下的订单是否已交付
func (r *ProcessedRecord) IsProcessed(fileKey, orderID string) bool {
	for _, id := range r.ProcessedOrders[fileKey] {
		if id == orderID {
			return true
		}
	}
	return false
}

// MarkProcessed 记录某文件下的订单已交付（幂等）
func (r *ProcessedRecord) MarkProcessed(fileKey, orderID string) {
	if r.ProcessedOrders == nil {
		r.ProcessedOrders = make(map[string][]string)
	}
	if r.IsProcessed(fileKey, orderID) {
		return
	}
	r.ProcessedOrders[fileKey] = append(r.ProcessedOrders[fileKey], orderID)
	r.LastFile = fileKey
}

// SetFileID 记录文件 key 对应的资产库文件 id
func (r *ProcessedRecord) SetFileID(fileKey, fileID string) {
	if r.FileIDs == nil {
		r.FileIDs = make(map[string]string)
	}
	r.FileIDs[fileKey] = fileID
}

// FileID 返回文件 key 最近记录的资产库文件 id，未记录时为空串
func (r *ProcessedRecord) FileID(fileKey string) string {
	return r.FileIDs[fileKey]
}

// Orders 返回某文件下已交付的订单 id 列表
func (r *ProcessedRecord) Orders(fileKey string) []string {
	return r.ProcessedOrders[fileKey]
}

// FileCount 返回已追踪的文件数
func (r *ProcessedRecord) FileCount() int {
	return len(r.ProcessedOrders)
}

// OrderCount 返回已交付的订单总数
func (r *ProcessedRecord) OrderCount() int {
	total := 0
	for _, ids := range r.ProcessedOrders {
		total += len(ids)
	}
	return total
}

// FailedEntry 单条失败记录
type FailedEntry struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
	Count  int       `json:"count"` // 连续失败次数
}

// FailedRecord 失败订单记录：订单 id（或整文件失败时的文件 key）-> 失败详情
//
// 仅用于报告与告警；订单是否重试由 ProcessedRecord 决定，失败记录本身
// 不阻止重试（dead-letter 阈值除外）。
type FailedRecord struct {
	FailedOrders map[string]FailedEntry `json:"failed_orders"`
}

// NewFailedRecord 创建空记录
func NewFailedRecord() *FailedRecord {
	return &FailedRecord{
		FailedOrders: make(map[string]FailedEntry),
	}
}

// MarkFailed 记录一次失败，返回累计连续失败次数
func (r *FailedRecord) MarkFailed(key, reason string, now time.Time) int {
	if r.FailedOrders == nil {
		r.FailedOrders = make(map[string]FailedEntry)
	}
	entry := r.FailedOrders[key]
	entry.Reason = reason
	entry.At = now
	entry.Count++
	r.FailedOrders[key] = entry
	return entry.Count
}

// Clear 移除一条失败记录（订单后续成功时调用）
func (r *FailedRecord) Clear(key string) {
	delete(r.FailedOrders, key)
}

// Get 查询失败记录
func (r *FailedRecord) Get(key string) (FailedEntry, bool) {
	entry, ok := r.FailedOrders[key]
	return entry, ok
}

// IsEmpty 判断是否没有失败记录
func (r *FailedRecord) IsEmpty() bool {
	return len(r.FailedOrders) == 0
}

// Len 返回失败记录数
func (r *FailedRecord) Len() int {
	return len(r.FailedOrders)
}
