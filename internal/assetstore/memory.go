package assetstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MemoryStore 内存实现（测试与本地开发用）
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int
	entries map[string]*memEntry // id -> entry

	// 故障注入钩子（nil 表示不注入）
	GetHook    func(id string) error
	ListHook   func(parentID string) error
	PutHook    func(parentID, name string) error
	UpdateHook func(id string) error
}

type memEntry struct {
	id       string
	name     string
	parentID string
	isFolder bool
	created  time.Time
	data     []byte
}

// NewMemoryStore 创建内存资产库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
	}
}

// AddFolder 创建目录（测试装配用），返回目录 id
func (s *MemoryStore) AddFolder(parentID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(parentID, name, true, nil)
}

// AddFile 创建文件（测试装配用），返回文件 id
func (s *MemoryStore) AddFile(parentID, name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(parentID, name, false, data)
}

// AddFileAt 创建带指定创建时间的文件（清理任务测试用）
func (s *MemoryStore) AddFileAt(parentID, name string, data []byte, created time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.add(parentID, name, false, data)
	s.entries[id].created = created
	return id
}

func (s *MemoryStore) add(parentID, name string, isFolder bool, data []byte) string {
	s.nextID++
	id := fmt.Sprintf("mem-%d", s.nextID)
	s.entries[id] = &memEntry{
		id:       id,
		name:     name,
		parentID: parentID,
		isFolder: isFolder,
		created:  time.Now(),
		data:     data,
	}
	return id
}

// List 列出目录内容
func (s *MemoryStore) List(ctx context.Context, parentID string, filter Filter) ([]Entry, error) {
	if s.ListHook != nil {
		if err := s.ListHook(parentID); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	// 遍历顺序按 id 递增，保证列表稳定
	for i := 1; i <= s.nextID; i++ {
		e, ok := s.entries[fmt.Sprintf("mem-%d", i)]
		if !ok || e.parentID != parentID {
			continue
		}
		if filter.FoldersOnly && !e.isFolder {
			continue
		}
		if filter.FilesOnly && e.isFolder {
			continue
		}
		if filter.NameEquals != "" && !strings.EqualFold(filter.NameEquals, e.name) {
			continue
		}
		result = append(result, Entry{
			ID:          e.id,
			Name:        e.name,
			CreatedTime: e.created,
			IsFolder:    e.isFolder,
		})
	}
	return result, nil
}

// Get 下载文件内容
func (s *MemoryStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.GetHook != nil {
		if err := s.GetHook(id); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.isFolder {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// Put 上传文件
func (s *MemoryStore) Put(ctx context.Context, parentID, name string, r io.Reader) (string, error) {
	if s.PutHook != nil {
		if err := s.PutHook(parentID, name); err != nil {
			return "", err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(parentID, name, false, data), nil
}

// Update 移动文件
func (s *MemoryStore) Update(ctx context.Context, id string, upd Update) error {
	if s.UpdateHook != nil {
		if err := s.UpdateHook(id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if upd.RemoveParent != "" && e.parentID != upd.RemoveParent {
		return fmt.Errorf("entry %s is not under parent %s", id, upd.RemoveParent)
	}
	if upd.AddParent != "" {
		e.parentID = upd.AddParent
	}
	return nil
}

// Delete 删除文件
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// ParentOf 查询文件当前父目录（测试断言用）
func (s *MemoryStore) ParentOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return "", false
	}
	return e.parentID, true
}
