package packager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yeka/zip"
)

// ZipPackager 加密 ZIP 打包实现（AES-256）
type ZipPackager struct{}

// NewZipPackager 创建 ZIP 打包实例
func NewZipPackager() *ZipPackager {
	return &ZipPackager{}
}

// Pack 将 dir 下所有文件（不递归）打包为加密 ZIP
func (p *ZipPackager) Pack(ctx context.Context, dir, outPath, password string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read workspace dir failed: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive failed: %w", err)
	}

	zw := zip.NewWriter(out)

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// 支持取消：打包大量文件时每个条目前检查一次
		select {
		case <-ctx.Done():
			zw.Close()
			out.Close()
			return ctx.Err()
		default:
		}

		if err := p.addFile(zw, filepath.Join(dir, entry.Name()), entry.Name(), password); err != nil {
			zw.Close()
			out.Close()
			return err
		}
		count++
	}

	if count == 0 {
		zw.Close()
		out.Close()
		return fmt.Errorf("no files to pack in %s", dir)
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize archive failed: %w", err)
	}

	return out.Close()
}

// addFile 写入单个加密条目
func (p *ZipPackager) addFile(zw *zip.Writer, path, name, password string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s failed: %w", name, err)
	}
	defer f.Close()

	w, err := zw.Encrypt(name, password, zip.AES256Encryption)
	if err != nil {
		return fmt.Errorf("create encrypted entry %s failed: %w", name, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s failed: %w", name, err)
	}

	return nil
}
