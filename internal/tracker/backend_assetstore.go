package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
)

// AssetStoreBackend 将记录作为 JSON 文件存放在 Asset Store 的配置目录中
type AssetStoreBackend struct {
	store        assetstore.Store
	configFolder string
}

// NewAssetStoreBackend 创建 Asset Store 后端
func NewAssetStoreBackend(store assetstore.Store, configFolder string) (*AssetStoreBackend, error) {
	if configFolder == "" {
		return nil, fmt.Errorf("store.config_folder is required for assetstore backend")
	}
	return &AssetStoreBackend{
		store:        store,
		configFolder: configFolder,
	}, nil
}

// Load 读取命名记录（同名多份时取最新创建的）
func (b *AssetStoreBackend) Load(ctx context.Context, name string) ([]byte, error) {
	entries, err := b.store.List(ctx, b.configFolder, assetstore.Filter{
		NameEquals: b.fileName(name),
		FilesOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("list tracker record failed: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	latest := entries[0]
	for _, e := range entries[1:] {
		if e.CreatedTime.After(latest.CreatedTime) {
			latest = e
		}
	}

	rc, err := b.store.Get(ctx, latest.ID)
	if err != nil {
		return nil, fmt.Errorf("get tracker record failed: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read tracker record failed: %w", err)
	}
	return data, nil
}

// Save 原子替换命名记录：先上传新文件，再删除旧文件
// 删除失败只会留下旧副本，Load 按创建时间取最新，语义不受影响
func (b *AssetStoreBackend) Save(ctx context.Context, name string, data []byte) error {
	old, err := b.store.List(ctx, b.configFolder, assetstore.Filter{
		NameEquals: b.fileName(name),
		FilesOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("list tracker record failed: %w", err)
	}

	if _, err := b.store.Put(ctx, b.configFolder, b.fileName(name), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("put tracker record failed: %w", err)
	}

	for _, e := range old {
		if err := b.store.Delete(ctx, e.ID); err != nil {
			// 旧副本删除失败不致命
			continue
		}
	}
	return nil
}

func (b *AssetStoreBackend) fileName(name string) string {
	return name + ".json"
}
