package fulfill

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
	"github.com/eitchpi/narrartive-backend/internal/exports"
	"github.com/eitchpi/narrartive-backend/internal/notifier"
	"github.com/eitchpi/narrartive-backend/internal/resolver"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// ExportSource 订单所属的导出文件
type ExportSource struct {
	File    assetstore.Entry
	Key     string // 追踪 key（即文件名；修正文件天然得到独立 key）
	BaseKey string // 修正文件对应的原始文件 key；非修正文件与 Key 相同
	IsFix   bool
}

// NewExportSource 根据导出文件构造来源信息
func NewExportSource(file assetstore.Entry) *ExportSource {
	return &ExportSource{
		File:    file,
		Key:     file.Name,
		BaseKey: exports.BaseExportName(file.Name),
		IsFix:   exports.IsFixExport(file.Name),
	}
}

// ProcessOrder 处理单个订单（状态机主流程）
//
// 任何一步失败都终止该订单并返回错误；已交付记录只在第 8 步成功后
// 更新，因此失败的订单下个 pass 自动重试。
func (o *Orchestrator) ProcessOrder(ctx context.Context, src *ExportSource, order *exports.LogicalOrder) error {
	ctx = logger.WithOrderID(ctx, order.ID)
	o.logState(ctx, order.ID, StatePending)

	// 1. 创建独占工作目录，所有退出路径都删除
	ws, err := NewWorkspace(o.opts.ScratchDir, order.ID)
	if err != nil {
		return err
	}
	defer ws.Remove()

	// 2. 逐行解析资产位置并下载
	o.logState(ctx, order.ID, StateResolving)
	for _, item := range order.Items {
		if err := o.downloadItem(ctx, ws, item); err != nil {
			return err
		}
	}

	// 3. 感谢卡资产；一个文件都没有说明资产库配置错了
	o.logState(ctx, order.ID, StateDownloading)
	thanks, err := o.downloadFolder(ctx, ws, o.opts.ThankYouFolder, "")
	if err != nil {
		return fmt.Errorf("download thank-you assets failed: %w", err)
	}
	if thanks == 0 {
		return fmt.Errorf("thank-you folder %s is empty, asset store misconfigured", o.opts.ThankYouFolder)
	}

	// 4. 确定性密码：订单 id + 买家邮箱后缀，重试时保持一致
	password := DerivePassword(order.ID, order.BuyerEmail, o.opts.PasswordSuffixLen)

	// 5. 打包
	o.logState(ctx, order.ID, StatePackaging)
	archiveName := fmt.Sprintf("order_%s.zip", sanitize(order.ID))
	archivePath := ws.Dir + ".zip"
	defer os.Remove(archivePath)
	if err := o.packager.Pack(ctx, ws.Dir, archivePath, password); err != nil {
		return fmt.Errorf("pack order archive failed: %w", err)
	}

	// 6. 上传交付物
	o.logState(ctx, order.ID, StateUploading)
	archiveID, err := o.uploadArchive(ctx, archivePath, archiveName)
	if err != nil {
		return err
	}

	// 7. 发买家邮件；发送失败则整个订单失败（避免出现"已记录未通知"）
	o.logState(ctx, order.ID, StateNotifying)
	if order.BuyerEmail == "" {
		return fmt.Errorf("order %s has no buyer email", order.ID)
	}
	err = o.notifier.Send(ctx, &notifier.Message{
		To:      order.BuyerEmail,
		Subject: buyerSubject(order),
		HTML:    buyerHTML(order, archiveName, archiveID, password),
	})
	if err != nil {
		return fmt.Errorf("send delivery email failed: %w", err)
	}

	// 8. 立即持久化交付记录（逐单落盘，崩溃最多丢当前订单）
	if err := o.recordDelivered(ctx, src, order.ID); err != nil {
		return err
	}

	o.logState(ctx, order.ID, StateRecorded)
	o.policy.ClearFailure(ctx, order.ID)
	o.publishEvent(ctx, DeliveryEvent{
		OrderID:  order.ID,
		FileName: src.Key,
		Buyer:    order.BuyerEmail,
		Status:   EventStatusDelivered,
	})
	return nil
}

// downloadItem 解析并下载一个订单行的全部资产
func (o *Orchestrator) downloadItem(ctx context.Context, ws *Workspace, item exports.Row) error {
	productName := resolver.NormalizeProduct(item.Product)

	productFolder, err := o.resolver.ResolveProduct(ctx, productName)
	if err != nil {
		return err
	}

	variant, err := o.resolver.ResolveFormat(ctx, productFolder)
	if err != nil {
		return err
	}

	count, err := o.downloadFolder(ctx, ws, variant.Folder.ID, productName)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("variant folder %s/%s is empty", productName, variant.Tag)
	}

	o.log.Debugf(ctx, "[Orchestrator] Downloaded %d files for product %s (%s)", count, productName, variant.Tag)
	return nil
}

// downloadFolder 下载目录内全部文件到工作目录，返回下载数量
//
// prefix 非空时作为文件名前缀，避免不同产品的同名文件互相覆盖；
// 同一目录内出现重名文件视为需要人工处理的冲突。
func (o *Orchestrator) downloadFolder(ctx context.Context, ws *Workspace, folderID, prefix string) (int, error) {
	entries, err := o.store.List(ctx, folderID, assetstore.Filter{FilesOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list folder %s failed: %w", folderID, err)
	}

	count := 0
	for _, entry := range entries {
		name := entry.Name
		if prefix != "" {
			name = prefix + " - " + name
		}
		target := filepath.Join(ws.Dir, name)

		if _, err := os.Stat(target); err == nil {
			return 0, fmt.Errorf("duplicate file %q in folder %s, manual cleanup required", name, folderID)
		}

		if err := o.downloadTo(ctx, entry.ID, target); err != nil {
			return 0, fmt.Errorf("download %s failed: %w", entry.Name, err)
		}
		count++
	}
	return count, nil
}

// downloadTo 下载单个文件到本地路径
func (o *Orchestrator) downloadTo(ctx context.Context, id, target string) error {
	rc, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// uploadArchive 上传交付压缩包，返回远端 id
func (o *Orchestrator) uploadArchive(ctx context.Context, archivePath, archiveName string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive failed: %w", err)
	}
	defer f.Close()

	id, err := o.store.Put(ctx, o.opts.DeliverablesFolder, archiveName, f)
	if err != nil {
		return "", fmt.Errorf("upload archive failed: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("upload archive returned empty id")
	}
	return id, nil
}

// recordDelivered 将订单写入已交付记录并立即落盘
// load-before-mutate + 互斥，pass 内并发订单不会互相丢更新
func (o *Orchestrator) recordDelivered(ctx context.Context, src *ExportSource, orderID string) error {
	o.trackerMu.Lock()
	defer o.trackerMu.Unlock()

	record, err := o.trackerStore.LoadProcessed(ctx)
	if err != nil {
		return fmt.Errorf("load processed record failed: %w", err)
	}
	record.MarkProcessed(src.Key, orderID)
	record.SetFileID(src.Key, src.File.ID)
	if err := o.trackerStore.SaveProcessed(ctx, record); err != nil {
		return fmt.Errorf("record delivered order failed: %w", err)
	}
	return nil
}

// logState 记录状态迁移
func (o *Orchestrator) logState(ctx context.Context, orderID string, state OrderState) {
	o.log.Infof(ctx, "[Orchestrator] Order %s -> %s", orderID, state)
}
