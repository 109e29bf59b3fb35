package assetstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound 目标文件或目录不存在
var ErrNotFound = errors.New("asset not found")

// Entry 目录列表项
type Entry struct {
	ID          string
	Name        string
	CreatedTime time.Time
	IsFolder    bool
}

// Filter 列表过滤条件（零值表示不过滤）
type Filter struct {
	NameEquals  string // 精确匹配名称（大小写不敏感）
	FoldersOnly bool
	FilesOnly   bool
}

// Update 文件移动操作（变更父目录）
type Update struct {
	AddParent    string
	RemoveParent string
}

// Store 外部资产库接口
//
// 远端是一个最终一致的层级文件服务（目录即 key 前缀），所有调用都可能
// 出现瞬时失败；调用方在边界上做超时与重试。
type Store interface {
	// List 列出目录内容
	List(ctx context.Context, parentID string, filter Filter) ([]Entry, error)

	// Get 下载文件内容
	Get(ctx context.Context, id string) (io.ReadCloser, error)

	// Put 上传文件，返回新文件 id
	Put(ctx context.Context, parentID, name string, r io.Reader) (string, error)

	// Update 移动文件（增删父目录）
	Update(ctx context.Context, id string, upd Update) error

	// Delete 删除文件
	Delete(ctx context.Context, id string) error
}
