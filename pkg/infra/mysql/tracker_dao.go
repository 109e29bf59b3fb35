package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = errors.New("tracker record not found")

// TrackerRecord 追踪记录表（每条命名记录存一份完整 JSON）
type TrackerRecord struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Data      []byte    `gorm:"type:mediumblob"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (TrackerRecord) TableName() string {
	return "fulfillment_tracker"
}

// TrackerDAO 追踪记录数据访问对象
type TrackerDAO struct {
	db *gorm.DB
}

// NewTrackerDAO 创建 TrackerDAO 实例
func NewTrackerDAO(dsn string) (*TrackerDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 建表（幂等）
	if err := db.AutoMigrate(&TrackerRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tracker table: %w", err)
	}

	return &TrackerDAO{
		db: db,
	}, nil
}

// Load 读取命名记录的完整 JSON
func (dao *TrackerDAO) Load(ctx context.Context, name string) ([]byte, error) {
	var record TrackerRecord
	result := dao.db.WithContext(ctx).Where("name = ?", name).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load tracker record %s: %w", name, result.Error)
	}
	return record.Data, nil
}

// Save 整体替换命名记录（upsert）
func (dao *TrackerDAO) Save(ctx context.Context, name string, data []byte) error {
	record := TrackerRecord{
		Name: name,
		Data: data,
	}

	result := dao.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&record)

	if result.Error != nil {
		return fmt.Errorf("failed to save tracker record %s: %w", name, result.Error)
	}

	return nil
}

// Close 关闭数据库连接
func (dao *TrackerDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
