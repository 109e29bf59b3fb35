package tracker

import (
	"context"
	"errors"

	"github.com/eitchpi/narrartive-backend/pkg/infra/mysql"
)

// MySQLBackend gorm TrackerDAO 的适配层（错误语义对齐）
type MySQLBackend struct {
	dao *mysql.TrackerDAO
}

// NewMySQLBackend 创建 MySQL 后端
func NewMySQLBackend(dao *mysql.TrackerDAO) *MySQLBackend {
	return &MySQLBackend{dao: dao}
}

// Load 读取命名记录
func (b *MySQLBackend) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := b.dao.Load(ctx, name)
	if err != nil {
		if errors.Is(err, mysql.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save 原子替换命名记录
func (b *MySQLBackend) Save(ctx context.Context, name string, data []byte) error {
	return b.dao.Save(ctx, name, data)
}
