package export

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// RemoveLeftovers 删除上次运行遗留的中间文件和未提交的临时文件
// 必须在 worker 启动前调用，否则可能删除正在写入的文件
func (c Core) RemoveLeftovers() int {
	entries, err := os.ReadDir(c.conf.Dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read export dir", "dir", c.conf.Dir, "err", err)
		}
		return 0
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind := leftoverKind(name)
		if kind == "" {
			continue
		}
		path := filepath.Join(c.conf.Dir, name)
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("failed to remove leftover", "path", path, "err", err)
			}
			continue
		}
		removed++
		cleanupRemovedTotal.WithLabelValues(kind).Inc()
		slog.Info("removed leftover export file", "path", path)
	}
	return removed
}

// leftoverKind 中间文件以 in_progress. 开头，裁剪阶段的临时文件为 "." + 最终文件名 + 随机数字
// 其余隐藏文件（.gitkeep、.nfsXXXX 等）不属于导出流水线，保留
func leftoverKind(name string) string {
	switch {
	case strings.HasPrefix(name, inProgressPrefix):
		return "intermediate"
	case pendingName.MatchString(name):
		return "pending"
	default:
		return ""
	}
}

// StartCleanupWorker 每小时删除一次超过保留天数的导出文件
// days 不大于 0 时不清理
func (c Core) StartCleanupWorker(ctx context.Context, days int) {
	if days <= 0 {
		slog.Info("export cleanup disabled", "days", days)
		return
	}
	slog.Info("export cleanup worker started", "retain_days", days)

	c.CleanupExpired(ctx, days)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CleanupExpired(ctx, days)
		}
	}
}

// CleanupExpired 删除超过保留天数的导出，先删除文件，再删除数据库记录
func (c Core) CleanupExpired(ctx context.Context, days int) int {
	cutoff := time.Now().AddDate(0, 0, -days)
	slog.Info("starting export cleanup", "cutoff_time", cutoff.Format(time.DateTime), "retain_days", days)

	// 分批查询并删除，避免一次性加载过多数据
	const batchSize = 100
	var total int
	for {
		var items []*Export
		pager := web.PagerFilter{Page: 1, Size: batchSize}
		_, err := c.store.Export().Find(ctx, &items, &pager,
			orm.Where("created_at < ?", orm.Time{Time: cutoff}),
		)
		if err != nil {
			slog.Error("failed to query expired exports", "err", err)
			break
		}
		if len(items) == 0 {
			break
		}

		ids := make([]string, 0, len(items))
		for _, e := range items {
			ids = append(ids, e.ID)
			if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
				slog.Warn("failed to delete export file", "path", e.Path, "err", err)
			}
		}

		err = c.store.Export().Session(ctx, func(tx *gorm.DB) error {
			return tx.Where("id IN ?", ids).Delete(&Export{}).Error
		})
		if err != nil {
			slog.Warn("failed to batch delete exports", "count", len(ids), "err", err)
			break
		}
		total += len(ids)
		cleanupRemovedTotal.WithLabelValues("expired").Add(float64(len(ids)))
	}

	slog.Info("export cleanup completed", "exports_deleted", total)
	return total
}
