package packager

import (
	"context"
)

// Packager 打包接口：将一组本地文件打进一个受密码保护的压缩包
type Packager interface {
	// Pack 将 dir 下的所有文件打包为 outPath 指向的压缩包
	// 所有条目共用同一个密码
	Pack(ctx context.Context, dir, outPath, password string) error
}
