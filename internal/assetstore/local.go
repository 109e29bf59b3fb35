package assetstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 本地目录实现
//
// 面向挂载或同步到本地的资产目录（例如 rclone mount）。条目 id 是
// 相对根目录的路径，目录 id 同理，因此配置中的 folder id 直接填相对
// 路径即可。
type LocalStore struct {
	root string
}

// NewLocalStore 创建本地目录资产库
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("store root dir is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("store root dir not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store root %s is not a directory", root)
	}
	return &LocalStore{root: root}, nil
}

// List 列出目录内容
func (s *LocalStore) List(ctx context.Context, parentID string, filter Filter) ([]Entry, error) {
	dir, err := s.abs(parentID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read dir %s failed: %w", parentID, err)
	}

	var result []Entry
	for _, e := range entries {
		if filter.FoldersOnly && !e.IsDir() {
			continue
		}
		if filter.FilesOnly && e.IsDir() {
			continue
		}
		if filter.NameEquals != "" && !strings.EqualFold(filter.NameEquals, e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, Entry{
			ID:          filepath.ToSlash(filepath.Join(parentID, e.Name())),
			Name:        e.Name(),
			CreatedTime: info.ModTime(),
			IsFolder:    e.IsDir(),
		})
	}
	return result, nil
}

// Get 下载文件内容
func (s *LocalStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := s.abs(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s failed: %w", id, err)
	}
	return f, nil
}

// Put 上传文件
func (s *LocalStore) Put(ctx context.Context, parentID, name string, r io.Reader) (string, error) {
	dir, err := s.abs(parentID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s failed: %w", parentID, err)
	}

	target := filepath.Join(dir, name)
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s failed: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write %s failed: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(parentID, name)), nil
}

// Update 移动文件（变更父目录）
func (s *LocalStore) Update(ctx context.Context, id string, upd Update) error {
	if upd.AddParent == "" {
		return fmt.Errorf("update without target parent")
	}

	src, err := s.abs(id)
	if err != nil {
		return err
	}
	targetDir, err := s.abs(upd.AddParent)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create dir %s failed: %w", upd.AddParent, err)
	}

	target := filepath.Join(targetDir, filepath.Base(src))
	if err := os.Rename(src, target); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("move %s failed: %w", id, err)
	}
	return nil
}

// Delete 删除文件
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	path, err := s.abs(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s failed: %w", id, err)
	}
	return nil
}

// abs 将相对 id 转换为根目录下的绝对路径，拒绝越界路径
func (s *LocalStore) abs(id string) (string, error) {
	cleaned := filepath.Clean("/" + id)
	return filepath.Join(s.root, cleaned), nil
}
