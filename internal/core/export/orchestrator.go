package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/gowvp/exporter/pkg/ffwork"
	"github.com/ixugo/goddd/pkg/reason"
)

// PrepareJob 查询请求窗口内的切片边界，生成导出任务
// 请求窗口超出已有录像时收缩到录像覆盖的范围
func (c Core) PrepareJob(ctx context.Context, in *PrepareJobInput) (Job, error) {
	if err := ValidateCamera(in.Camera); err != nil {
		return Job{}, reason.ErrBadRequest.SetMsg(err.Error())
	}
	if !in.PlaybackFactor.Valid() {
		return Job{}, reason.ErrBadRequest.Withf("unsupported playback_factor[%s]", in.PlaybackFactor)
	}
	if in.EndTime <= in.StartTime {
		return Job{}, reason.ErrBadRequest.Withf("invalid window start[%v] end[%v]", in.StartTime, in.EndTime)
	}

	b, err := c.source.Bounds(ctx, &recording.FindSegmentsInput{
		Camera: in.Camera,
		Start:  in.StartTime,
		End:    in.EndTime,
	})
	if err != nil {
		return Job{}, err
	}
	if b.IsEmpty() {
		return Job{}, reason.ErrNotFound.Withf("no recordings for camera[%s] in [%v,%v]", in.Camera, in.StartTime, in.EndTime)
	}

	job := Job{
		Camera:         in.Camera,
		StartTime:      max(in.StartTime, b.MinStartTime),
		EndTime:        min(in.EndTime, b.MaxEndTime),
		PlaybackFactor: in.PlaybackFactor,
		MinStartTime:   b.MinStartTime,
		MaxEndTime:     b.MaxEndTime,
		Duration:       int64(math.Round((b.MaxEndTime - b.MinStartTime) * 1000)),
	}
	if err := job.Validate(); err != nil {
		return Job{}, reason.ErrBadRequest.SetMsg(err.Error())
	}
	return job, nil
}

// Export 执行一次导出
// 目标文件已存在时直接返回 skipped，相同目标文件的并发请求共享同一次执行和结果
// 合成和裁剪顺序执行，任一阶段失败都会删除本阶段产生的文件，不重试
func (c Core) Export(ctx context.Context, job Job) Result {
	if err := job.Validate(); err != nil {
		slog.WarnContext(ctx, "reject export job", "camera", job.Camera, "err", err)
		jobsTotal.WithLabelValues(string(job.PlaybackFactor), string(StatusFailed)).Inc()
		return failed("", err)
	}
	paths := c.Paths(job)

	v, _, shared := c.group.Do(paths.Final, func() (any, error) {
		r := c.export(ctx, job, paths)
		jobsTotal.WithLabelValues(string(job.PlaybackFactor), string(r.Status)).Inc()
		return r, nil
	})
	if shared {
		slog.DebugContext(ctx, "export shared with concurrent request", "path", paths.Final)
	}
	return v.(Result)
}

func (c Core) export(ctx context.Context, job Job, paths Paths) Result {
	log := slog.With("camera", job.Camera, "start_time", job.StartTime, "end_time", job.EndTime, "playback_factor", job.PlaybackFactor)

	if _, err := os.Stat(paths.Final); err == nil {
		log.DebugContext(ctx, "export already exists", "path", paths.Final)
		// 上次登记失败的文件在这里补登记，否则保留期清理和列表都看不到它
		if err := c.ensureExport(ctx, job, paths.Final); err != nil {
			log.ErrorContext(ctx, "failed to register existing export", "path", paths.Final, "err", err)
		}
		return Result{Status: StatusSkipped, Path: paths.Final}
	}
	if err := os.MkdirAll(filepath.Dir(paths.Final), 0o755); err != nil {
		return failed(paths.Final, fmt.Errorf("create export dir: %w", err))
	}
	if err := c.checkDiskUsage(filepath.Dir(paths.Final)); err != nil {
		log.WarnContext(ctx, "export refused", "err", err)
		return failed(paths.Final, err)
	}

	log.InfoContext(ctx, "beginning export", "path", paths.Final)
	start := time.Now()
	if err := c.synthesize(ctx, job, paths); err != nil {
		return failed(paths.Final, err)
	}
	if err := c.trim(ctx, job, paths); err != nil {
		return failed(paths.Final, err)
	}

	if err := c.addExport(ctx, job, paths.Final); err != nil {
		// 文件已经生成，登记失败不影响导出结果
		log.ErrorContext(ctx, "failed to register export", "path", paths.Final, "err", err)
	}
	log.InfoContext(ctx, "finished exporting", "path", paths.Final, "elapsed", time.Since(start))
	return Result{Status: StatusComplete, Path: paths.Final}
}

// synthesize 第一遍，将切片合成到中间文件
func (c Core) synthesize(ctx context.Context, job Job, paths Paths) error {
	start := time.Now()
	in, err := c.playlist.Build(ctx, job)
	if err != nil {
		return fmt.Errorf("build playlist: %w", err)
	}
	if in.Concat {
		slog.DebugContext(ctx, "concat playlist", "camera", job.Camera, "lines", len(in.Lines))
	}
	cmd, err := c.commands.Synthesize(job, in, paths.Intermediate)
	if err != nil {
		return err
	}
	cmd.Niceness = c.conf.Niceness

	ctx, cancel := withTimeout(ctx, c.conf.SynthesizeTimeout.Duration())
	defer cancel()
	if _, err := c.runner.Run(ctx, cmd); err != nil {
		slog.ErrorContext(ctx, "failed to export recording", "cmd", cmd.String(), "err", err, "stderr", stderrOf(err))
		removeFile(paths.Intermediate)
		return fmt.Errorf("synthesize: %w", err)
	}
	stageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	return nil
}

// trim 第二遍，裁剪到请求窗口后原子替换到最终文件
// 无论成功失败，中间文件都会删除
func (c Core) trim(ctx context.Context, job Job, paths Paths) error {
	defer removeFile(paths.Intermediate)

	start := time.Now()
	w, err := TrimWindowFor(job)
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(paths.Final,
		renameio.WithTempDir(filepath.Dir(paths.Final)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// 提交后 Cleanup 不会删除已替换的文件
		_ = pending.Cleanup()
	}()

	cmd := c.commands.Trim(w, paths.Intermediate, pending.Name())
	cmd.Niceness = c.conf.Niceness

	ctx, cancel := withTimeout(ctx, c.conf.TrimTimeout.Duration())
	defer cancel()
	if _, err := c.runner.Run(ctx, cmd); err != nil {
		slog.ErrorContext(ctx, "failed to cut recording", "cmd", cmd.String(), "err", err, "stderr", stderrOf(err))
		return fmt.Errorf("trim: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("promote export file: %w", err)
	}
	stageDuration.WithLabelValues("trim").Observe(time.Since(start).Seconds())
	return nil
}

func (c Core) checkDiskUsage(dir string) error {
	limit := c.conf.DiskUsageThreshold
	if limit <= 0 || c.diskUsage == nil {
		return nil
	}
	used, err := c.diskUsage(dir)
	if err != nil {
		slog.Warn("failed to get disk usage", "dir", dir, "err", err)
		return nil
	}
	if used >= limit {
		return fmt.Errorf("%w: used[%.1f%%] threshold[%.1f%%]", ErrDiskUsageLimit, used, limit)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// removeFile 删除文件，不存在时忽略
func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove file", "path", path, "err", err)
	}
}

func stderrOf(err error) string {
	var exitErr *ffwork.ExitError
	if errors.As(err, &exitErr) {
		return strings.Join(exitErr.Log, "\n")
	}
	return ""
}
