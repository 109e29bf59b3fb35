package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
)

// productDelimiter 导出的产品名在此分隔符后带营销文案，查目录前必须截断
const productDelimiter = " - "

// NotFoundError 产品或尺寸目录未找到
//
// 对单个订单致命（不影响同文件其他订单）；错误信息必须点名查找过的
// 目标，便于人工修正目录结构。
type NotFoundError struct {
	Kind      string   // product / format
	Searched  string   // 查找的产品名或产品目录名
	Attempted []string // 尝试过的集合或尺寸目录
}

// Error 实现 error 接口
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found (searched: %s)",
		e.Kind, e.Searched, strings.Join(e.Attempted, ", "))
}

// Variant 尺寸目录解析结果
type Variant struct {
	Folder assetstore.Entry
	Tag    string // 命中的尺寸目录名
}

// Resolver 资产定位器
//
// 按固定优先级在集合目录中查找产品目录，再在产品目录下按优先级查找
// 尺寸目录。两级都是 first-match：产品目录下存在多个尺寸目录时，只取
// 优先级最高的一个（刻意简化）。
type Resolver struct {
	store          assetstore.Store
	collections    []string // 集合目录 id，按优先级
	formatVariants []string // 尺寸目录名，按优先级
}

// NewResolver 创建资产定位器
func NewResolver(store assetstore.Store, collections, formatVariants []string) *Resolver {
	return &Resolver{
		store:          store,
		collections:    collections,
		formatVariants: formatVariants,
	}
}

// NormalizeProduct 截断产品名中 " - " 之后的营销后缀
func NormalizeProduct(name string) string {
	if idx := strings.Index(name, productDelimiter); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// ResolveProduct 在集合目录中定位产品目录（先 NormalizeProduct 再调用）
func (r *Resolver) ResolveProduct(ctx context.Context, productName string) (assetstore.Entry, error) {
	for _, collection := range r.collections {
		entries, err := r.store.List(ctx, collection, assetstore.Filter{
			NameEquals:  productName,
			FoldersOnly: true,
		})
		if err != nil {
			return assetstore.Entry{}, fmt.Errorf("list collection %s failed: %w", collection, err)
		}
		if len(entries) > 0 {
			return entries[0], nil
		}
	}

	return assetstore.Entry{}, &NotFoundError{
		Kind:      "product",
		Searched:  productName,
		Attempted: r.collections,
	}
}

// ResolveFormat 在产品目录下按优先级定位尺寸目录
func (r *Resolver) ResolveFormat(ctx context.Context, productFolder assetstore.Entry) (Variant, error) {
	for _, tag := range r.formatVariants {
		entries, err := r.store.List(ctx, productFolder.ID, assetstore.Filter{
			NameEquals:  tag,
			FoldersOnly: true,
		})
		if err != nil {
			return Variant{}, fmt.Errorf("list product folder %s failed: %w", productFolder.Name, err)
		}
		if len(entries) > 0 {
			return Variant{Folder: entries[0], Tag: tag}, nil
		}
	}

	return Variant{}, &NotFoundError{
		Kind:      "format",
		Searched:  productFolder.Name,
		Attempted: r.formatVariants,
	}
}
