package fulfill

import (
	"context"
	"fmt"
	"time"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
)

// CleanupDeliverables 删除超过保留时长的交付压缩包
//
// 买家拿到的下载引用有效期有限，过期的压缩包定时清理，避免交付目录
// 无限增长。
func (o *Orchestrator) CleanupDeliverables(ctx context.Context, maxAge time.Duration) error {
	entries, err := o.store.List(ctx, o.opts.DeliverablesFolder, assetstore.Filter{FilesOnly: true})
	if err != nil {
		return fmt.Errorf("list deliverables folder failed: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.CreatedTime.After(cutoff) {
			continue
		}
		if err := o.store.Delete(ctx, entry.ID); err != nil {
			o.log.Warnf(ctx, "[Orchestrator] Delete stale deliverable %s failed: %v", entry.Name, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		o.log.Infof(ctx, "[Orchestrator] Cleanup removed %d stale deliverable(s)", removed)
	}
	return nil
}
