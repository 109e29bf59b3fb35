package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eitchpi/narrartive-backend/internal/assetstore"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

func newFileStore(t *testing.T) *Store {
	t.Helper()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return NewStore(backend, logger.NewNopLogger())
}

func TestProcessedRecord(t *testing.T) {
	r := NewProcessedRecord()
	assert.False(t, r.IsProcessed("orders.csv", "1001"))

	r.MarkProcessed("orders.csv", "1001")
	r.MarkProcessed("orders.csv", "1001") // 幂等
	r.MarkProcessed("orders.csv", "1002")

	assert.True(t, r.IsProcessed("orders.csv", "1001"))
	assert.False(t, r.IsProcessed("other.csv", "1001"))
	assert.Equal(t, []string{"1001", "1002"}, r.Orders("orders.csv"))
	assert.Equal(t, 1, r.FileCount())
	assert.Equal(t, 2, r.OrderCount())
	assert.Equal(t, "orders.csv", r.LastFile)

	assert.Empty(t, r.FileID("orders.csv"))
	r.SetFileID("orders.csv", "file-1")
	r.SetFileID("orders.csv", "file-2") // 最近一次记录胜出
	assert.Equal(t, "file-2", r.FileID("orders.csv"))
}

func TestFailedRecord(t *testing.T) {
	r := NewFailedRecord()
	now := time.Now()

	assert.Equal(t, 1, r.MarkFailed("1001", "boom", now))
	assert.Equal(t, 2, r.MarkFailed("1001", "boom again", now))

	entry, ok := r.Get("1001")
	require.True(t, ok)
	assert.Equal(t, "boom again", entry.Reason)
	assert.Equal(t, 2, entry.Count)

	r.Clear("1001")
	assert.True(t, r.IsEmpty())
}

func TestStore_RoundTrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	record, err := store.LoadProcessed(ctx)
	require.NoError(t, err)
	record.MarkProcessed("orders.csv", "1001")
	require.NoError(t, store.SaveProcessed(ctx, record))

	loaded, err := store.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsProcessed("orders.csv", "1001"))
}

func TestStore_LoadMissingReturnsEmpty(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	// 记录不存在不是错误：返回空记录
	record, err := store.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, record.FileCount())

	failed, err := store.LoadFailed(ctx)
	require.NoError(t, err)
	assert.True(t, failed.IsEmpty())
}

type fakeAlerter struct {
	keys []string
}

func (a *fakeAlerter) AlertDaily(ctx context.Context, key, message string) bool {
	a.keys = append(a.keys, key)
	return true
}

func TestStore_CorruptRecordResetsAndAlerts(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processed.json"), []byte("{not json"), 0o644))

	store := NewStore(backend, logger.NewNopLogger())
	alerter := &fakeAlerter{}
	store.SetAlerter(alerter)

	// 损坏的记录不向上传播：告警后以空记录继续
	record, err := store.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, record.FileCount())
	assert.Equal(t, []string{"tracker-corrupt-processed"}, alerter.keys)
}

func TestStore_SeparateNamespaces(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	processed := NewProcessedRecord()
	processed.MarkProcessed("orders.csv", "1001")
	require.NoError(t, store.SaveProcessed(ctx, processed))

	failed := NewFailedRecord()
	failed.MarkFailed("2002", "missing product", time.Now())
	require.NoError(t, store.SaveFailed(ctx, failed))

	loadedProcessed, err := store.LoadProcessed(ctx)
	require.NoError(t, err)
	loadedFailed, err := store.LoadFailed(ctx)
	require.NoError(t, err)

	assert.True(t, loadedProcessed.IsProcessed("orders.csv", "1001"))
	_, ok := loadedFailed.Get("2002")
	assert.True(t, ok)
}

func TestAssetStoreBackend_RoundTrip(t *testing.T) {
	ms := assetstore.NewMemoryStore()
	configFolder := ms.AddFolder("", "config")

	backend, err := NewAssetStoreBackend(ms, configFolder)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.Load(ctx, "processed")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Save(ctx, "processed", []byte(`{"a":1}`)))
	require.NoError(t, backend.Save(ctx, "processed", []byte(`{"a":2}`)))

	// 重复 Save 后读到的是最新内容，旧副本被清掉
	data, err := backend.Load(ctx, "processed")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := ms.List(ctx, configFolder, assetstore.Filter{NameEquals: "processed.json"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, "processed", []byte("v1")))
	require.NoError(t, backend.Save(ctx, "processed", []byte("v2")))

	data, err := backend.Load(ctx, "processed")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// 临时文件不残留
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
