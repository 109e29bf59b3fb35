package fulfill

import (
	"fmt"
	"os"
	"strings"
)

// Workspace 单个订单独占的临时工作目录
//
// 每次处理尝试创建新目录，绝不跨订单复用；所有退出路径（成功、失败、
// panic）都必须删除。
type Workspace struct {
	Dir string
}

// NewWorkspace 创建订单工作目录
func NewWorkspace(scratchRoot, orderID string) (*Workspace, error) {
	if scratchRoot != "" {
		if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch root failed: %w", err)
		}
	}

	dir, err := os.MkdirTemp(scratchRoot, "order-"+sanitize(orderID)+"-")
	if err != nil {
		return nil, fmt.Errorf("create order workspace failed: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Remove 删除工作目录及其内容
func (w *Workspace) Remove() {
	os.RemoveAll(w.Dir)
}

// sanitize 去掉订单 id 中不适合做目录名的字符
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
