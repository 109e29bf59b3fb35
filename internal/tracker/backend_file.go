package tracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend 本地 JSON 文件后端
//
// 写入采用临时文件 + rename，保证崩溃时不留半写状态。
type FileBackend struct {
	dir string
}

// NewFileBackend 创建本地文件后端
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("tracker dir is required for file backend")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tracker dir failed: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Load 读取命名记录
func (b *FileBackend) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read tracker file failed: %w", err)
	}
	return data, nil
}

// Save 原子替换命名记录
func (b *FileBackend) Save(ctx context.Context, name string, data []byte) error {
	target := b.path(name)
	tmp, err := os.CreateTemp(b.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp tracker file failed: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write tracker file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close tracker file failed: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace tracker file failed: %w", err)
	}
	return nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".json")
}
