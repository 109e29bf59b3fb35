package fulfill

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
	"github.com/eitchpi/narrartive-backend/internal/exports"
	"github.com/eitchpi/narrartive-backend/internal/tracker"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// ProcessAllOrders 单次调度 pass：扫描导出文件并处理其中未交付的订单
//
// 只有 pass 级的初始化失败（如 incoming 目录不可列出）向上返回；
// 单个文件、单个订单的失败都在内部记录并隔离。
func (o *Orchestrator) ProcessAllOrders(ctx context.Context) error {
	ctx = logger.WithTraceID(ctx, uuid.New().String())
	o.passCount.Inc()
	o.lastPassAt.Store(time.Now().Unix())

	files, err := o.store.List(ctx, o.opts.IncomingFolder, assetstore.Filter{FilesOnly: true})
	if err != nil {
		o.lastError.Store(fmt.Sprintf("list incoming folder: %v", err))
		return fmt.Errorf("list incoming folder failed: %w", err)
	}

	if len(files) == 0 {
		o.log.Debugf(ctx, "[Orchestrator] No export files to process")
		return nil
	}

	// 按创建时间升序，最早的导出先处理
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedTime.Before(files[j].CreatedTime)
	})

	if o.opts.ScanMode == ScanModeLatestOnly {
		files = files[len(files)-1:]
	}

	o.log.Infof(ctx, "[Orchestrator] Pass started, %d export file(s)", len(files))

	for _, file := range files {
		o.processFile(ctx, file)
	}

	o.log.Infof(ctx, "[Orchestrator] Pass complete")
	return nil
}

// processFile 处理一个导出文件（文件级故障隔离）
func (o *Orchestrator) processFile(ctx context.Context, file assetstore.Entry) {
	ctx = logger.WithFileName(ctx, file.Name)
	src := NewExportSource(file)

	orders, ok := o.parseFile(ctx, src)
	if !ok {
		return
	}
	if len(orders) == 0 {
		o.policy.AlertDaily(ctx, "empty-export-"+src.Key,
			fmt.Sprintf("export file %q contains no valid order rows", src.Key))
		return
	}

	processed, err := o.trackerStore.LoadProcessed(ctx)
	if err != nil {
		o.fileFailure(ctx, src, fmt.Sprintf("load processed record: %v", err))
		return
	}
	failedRec, err := o.trackerStore.LoadFailed(ctx)
	if err != nil {
		o.log.Errorf(ctx, "[Orchestrator] Load failed record failed, dead-letter check disabled this pass: %v", err)
		failedRec = nil
	}

	// 全部订单已交付但文件还在 incoming：同一个文件 id 说明上个 pass
	// 归档失败，重试归档即可；不同 id 才是同名文件被重新投递的冲突，
	// 跳过并提醒运维改名或加修正标记
	if !src.IsFix && o.allTracked(processed, src, orders) {
		if processed.FileID(src.Key) == src.File.ID {
			o.log.Warnf(ctx, "[Orchestrator] File %s already fully tracked, retrying archive", src.Key)
			o.archiveFile(ctx, src)
			return
		}
		o.log.Warnf(ctx, "[Orchestrator] File %s is already fully tracked, skipping", src.Key)
		o.policy.AlertDaily(ctx, "duplicate-export-"+src.Key,
			fmt.Sprintf("export file %q was re-delivered but every order in it is already tracked; rename it with the fix marker if reprocessing is intended", src.Key))
		return
	}

	// 过滤已交付与 dead-letter 订单
	var pending []*exports.LogicalOrder
	for _, order := range orders {
		if o.isTracked(processed, src, order.ID) {
			o.log.Debugf(ctx, "[Orchestrator] Order %s already delivered, skipping", order.ID)
			continue
		}
		if o.isDeadLettered(failedRec, order.ID) {
			o.policy.AlertDaily(ctx, "dead-letter-"+order.ID,
				fmt.Sprintf("order %s from file %q reached %d consecutive failures; auto-retry stopped, clear its failure record to retry",
					order.ID, src.Key, o.opts.MaxConsecutiveFailures))
			continue
		}
		pending = append(pending, order)
	}

	o.log.Infof(ctx, "[Orchestrator] File %s: %d order(s), %d pending", src.Key, len(orders), len(pending))

	o.runOrders(ctx, src, pending)

	// 只有文件中每个订单都已交付才归档；否则留在 incoming 等下个 pass
	after, err := o.trackerStore.LoadProcessed(ctx)
	if err != nil {
		o.log.Errorf(ctx, "[Orchestrator] Load processed record after pass failed: %v", err)
		return
	}
	if o.allTracked(after, src, orders) {
		o.archiveFile(ctx, src)
	}
}

// parseFile 下载并解析导出文件
func (o *Orchestrator) parseFile(ctx context.Context, src *ExportSource) ([]*exports.LogicalOrder, bool) {
	rc, err := o.store.Get(ctx, src.File.ID)
	if err != nil {
		o.fileFailure(ctx, src, fmt.Sprintf("download export file: %v", err))
		return nil, false
	}
	defer rc.Close()

	result, err := exports.ParseRows(rc)
	if err != nil {
		o.fileFailure(ctx, src, fmt.Sprintf("parse export file: %v", err))
		return nil, false
	}
	if result.Skipped > 0 {
		o.log.Warnf(ctx, "[Orchestrator] File %s: skipped %d malformed row(s)", src.Key, result.Skipped)
	}

	return exports.Group(result.Rows), true
}

// runOrders 处理待交付订单（可配置的有界并发）
func (o *Orchestrator) runOrders(ctx context.Context, src *ExportSource, pending []*exports.LogicalOrder) {
	if len(pending) == 0 {
		return
	}

	workers := o.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}

	if workers <= 1 {
		for _, order := range pending {
			o.runOrder(ctx, src, order)
		}
		return
	}

	queue := make(chan *exports.LogicalOrder)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for order := range queue {
				o.runOrder(ctx, src, order)
			}
		}()
	}
	for _, order := range pending {
		queue <- order
	}
	close(queue)
	wg.Wait()
}

// runOrder 处理单个订单并吸收一切失败（含 panic）
func (o *Orchestrator) runOrder(ctx context.Context, src *ExportSource, order *exports.LogicalOrder) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while processing order %s: %v", order.ID, r)
			}
		}()
		return o.ProcessOrder(ctx, src, order)
	}()

	if err == nil {
		o.delivered.Inc()
		return
	}

	o.failed.Inc()
	o.lastError.Store(fmt.Sprintf("order %s: %v", order.ID, err))
	o.logState(ctx, order.ID, StateFailed)
	o.policy.LogDailyError(ctx, order.ID,
		fmt.Sprintf("order %s from file %q failed: %v", order.ID, src.Key, err))
	o.publishEvent(ctx, DeliveryEvent{
		OrderID:  order.ID,
		FileName: src.Key,
		Buyer:    order.BuyerEmail,
		Status:   EventStatusFailed,
	})
}

// fileFailure 整文件失败：以文件 key 记录并告警
func (o *Orchestrator) fileFailure(ctx context.Context, src *ExportSource, reason string) {
	o.log.Errorf(ctx, "[Orchestrator] File %s failed: %s", src.Key, reason)
	o.lastError.Store(fmt.Sprintf("file %s: %s", src.Key, reason))
	o.policy.LogDailyError(ctx, src.Key, fmt.Sprintf("export file %q failed: %s", src.Key, reason))
}

// archiveFile 将处理完毕的导出文件移入 processed 目录
func (o *Orchestrator) archiveFile(ctx context.Context, src *ExportSource) {
	err := o.store.Update(ctx, src.File.ID, assetstore.Update{
		AddParent:    o.opts.ProcessedFolder,
		RemoveParent: o.opts.IncomingFolder,
	})
	if err != nil {
		// 归档失败不影响正确性：订单都已追踪，下个 pass 会当作重复文件告警
		o.log.Errorf(ctx, "[Orchestrator] Archive file %s failed: %v", src.Key, err)
		return
	}
	o.log.Infof(ctx, "[Orchestrator] File %s fully processed, moved to processed folder", src.Key)
}

// isTracked 判断订单是否已交付（修正文件同时检查原始文件的记录）
func (o *Orchestrator) isTracked(processed *tracker.ProcessedRecord, src *ExportSource, orderID string) bool {
	if processed.IsProcessed(src.Key, orderID) {
		return true
	}
	if src.IsFix && processed.IsProcessed(src.BaseKey, orderID) {
		return true
	}
	return false
}

// allTracked 判断文件中全部订单是否都已交付
func (o *Orchestrator) allTracked(processed *tracker.ProcessedRecord, src *ExportSource, orders []*exports.LogicalOrder) bool {
	for _, order := range orders {
		if !o.isTracked(processed, src, order.ID) {
			return false
		}
	}
	return true
}

// isDeadLettered 判断订单是否达到连续失败阈值
func (o *Orchestrator) isDeadLettered(failedRec *tracker.FailedRecord, orderID string) bool {
	if o.opts.MaxConsecutiveFailures <= 0 || failedRec == nil {
		return false
	}
	entry, ok := failedRec.Get(orderID)
	return ok && entry.Count >= o.opts.MaxConsecutiveFailures
}
