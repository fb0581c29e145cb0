package export_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/internal/core/export"
	"github.com/gowvp/exporter/internal/core/export/store/exportdb"
	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/gowvp/exporter/internal/core/recording/store/recordingdb"
	"github.com/gowvp/exporter/pkg/ffwork"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeRunner 把输出参数当作文件路径写入内容，模拟 ffmpeg
type fakeRunner struct {
	m      sync.Mutex
	cmds   []ffwork.Cmd
	failAt int // 第几次调用返回失败，从 1 开始
	delay  time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, cmd ffwork.Cmd) (ffwork.Result, error) {
	f.m.Lock()
	f.cmds = append(f.cmds, cmd)
	n := len(f.cmds)
	f.m.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ffwork.Result{ExitCode: -1}, &ffwork.ExitError{Code: -1, Err: ctx.Err()}
		}
	}
	out := cmd.Args[len(cmd.Args)-1]
	if err := os.WriteFile(out, []byte(fmt.Sprintf("pass %d", n)), 0o644); err != nil {
		return ffwork.Result{ExitCode: -1}, err
	}
	if n == f.failAt {
		return ffwork.Result{ExitCode: 1, Log: []string{"Invalid data found when processing input"}},
			&ffwork.ExitError{Code: 1, Log: []string{"Invalid data found when processing input"}, Err: errors.New("exit status 1")}
	}
	return ffwork.Result{}, nil
}

func (f *fakeRunner) calls() []ffwork.Cmd {
	f.m.Lock()
	defer f.m.Unlock()
	return slices.Clone(f.cmds)
}

type fixture struct {
	core   export.Core
	runner *fakeRunner
	db     *gorm.DB
	dir    string
}

func newFixture(t *testing.T, setup func(*conf.Bootstrap), opts ...export.Option) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "data.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	bc := conf.DefaultConfig()
	bc.Export.Dir = filepath.Join(t.TempDir(), "exports")
	bc.Export.DiskUsageThreshold = 0
	if setup != nil {
		setup(&bc)
	}

	segments := recording.NewCore(recordingdb.NewDB(db).AutoMigrate(true), recording.WithPageSize(bc.Export.PageSize))
	runner := &fakeRunner{}
	opts = append([]export.Option{export.WithRunner(runner)}, opts...)
	core := export.NewCore(exportdb.NewDB(db).AutoMigrate(true), segments, &bc, opts...)
	return &fixture{core: core, runner: runner, db: db, dir: bc.Export.Dir}
}

// seed 写入连续的 10 秒切片
func (f *fixture) seed(t *testing.T, camera string, start float64, n int) {
	t.Helper()
	items := make([]*recording.Recording, 0, n)
	for i := range n {
		s := start + float64(i*10)
		items = append(items, &recording.Recording{
			ID:        fmt.Sprintf("%s-%06d", camera, i),
			Camera:    camera,
			Path:      fmt.Sprintf("%s/%06d.mp4", camera, i),
			StartTime: s,
			EndTime:   s + 10,
			Duration:  10,
		})
	}
	require.NoError(t, f.db.CreateInBatches(items, 200).Error)
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func exampleJob() export.Job {
	return export.Job{
		Camera:         "front",
		StartTime:      1010,
		EndTime:        1170,
		PlaybackFactor: export.PlaybackRealtime,
		MinStartTime:   1000,
		MaxEndTime:     1180,
		Duration:       180000,
	}
}

func TestExportComplete(t *testing.T) {
	f := newFixture(t, nil)
	job := exampleJob()
	paths := f.core.Paths(job)

	r := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusComplete, r.Status, r.Reason)
	require.Equal(t, paths.Final, r.Path)
	require.Equal(t, []string{filepath.Base(paths.Final)}, f.files(t))

	b, err := os.ReadFile(paths.Final)
	require.NoError(t, err)
	require.Equal(t, "pass 2", string(b))

	cmds := f.runner.calls()
	require.Len(t, cmds, 2)
	require.Equal(t, paths.Intermediate, cmds[0].Args[len(cmds[0].Args)-1])
	require.Equal(t, 10, cmds[0].Niceness)

	trim := cmds[1].Args
	require.Equal(t, []string{"-ss", "10", "-to", "170", "-i", paths.Intermediate}, trim[2:8])
	require.NotEqual(t, paths.Final, trim[len(trim)-1], "trim must write a pending file")
	require.Equal(t, filepath.Dir(paths.Final), filepath.Dir(trim[len(trim)-1]))

	items, total, err := f.core.FindExports(context.Background(), &export.FindExportInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, paths.Final, items[0].Path)
	require.Equal(t, "front", items[0].Camera)
	require.Equal(t, 160.0, items[0].Duration)
	require.Equal(t, "realtime", items[0].PlaybackFactor)
}

func TestExportIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	job := exampleJob()

	first := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusComplete, first.Status)

	second := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusSkipped, second.Status)
	require.Equal(t, first.Path, second.Path)
	require.Len(t, f.runner.calls(), 2, "second export must not run ffmpeg")
	require.Len(t, f.files(t), 1)
}

func TestExportRegistersExistingFile(t *testing.T) {
	f := newFixture(t, nil)
	job := exampleJob()

	first := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusComplete, first.Status)
	// 模拟文件已生成但登记失败
	require.NoError(t, f.db.Where("path = ?", first.Path).Delete(&export.Export{}).Error)

	second := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusSkipped, second.Status)
	require.Len(t, f.runner.calls(), 2, "existing file must not be exported again")

	items, total, err := f.core.FindExports(context.Background(), &export.FindExportInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, first.Path, items[0].Path)

	// 已登记时不重复写入
	third := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusSkipped, third.Status)
	_, total, err = f.core.FindExports(context.Background(), &export.FindExportInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestExportConcurrentSamePath(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.delay = 100 * time.Millisecond
	job := exampleJob()

	var wg sync.WaitGroup
	results := make([]export.Result, 5)
	start := make(chan struct{})
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = f.core.Export(context.Background(), job)
		}()
	}
	close(start)
	wg.Wait()

	for _, r := range results {
		require.Contains(t, []export.Status{export.StatusComplete, export.StatusSkipped}, r.Status)
	}
	require.Len(t, f.runner.calls(), 2)
	require.Len(t, f.files(t), 1)
}

func TestExportSynthesizeFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.failAt = 1

	r := f.core.Export(context.Background(), exampleJob())
	require.Equal(t, export.StatusFailed, r.Status)
	require.Contains(t, r.Reason, "synthesize")

	var exitErr *ffwork.ExitError
	require.ErrorAs(t, r.Err, &exitErr)
	require.Equal(t, 1, exitErr.Code)

	require.Len(t, f.runner.calls(), 1, "trim must not run after a failed synthesis")
	require.Empty(t, f.files(t))
}

func TestExportTrimFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.failAt = 2

	r := f.core.Export(context.Background(), exampleJob())
	require.Equal(t, export.StatusFailed, r.Status)
	require.Contains(t, r.Reason, "trim")
	require.Len(t, f.runner.calls(), 2)
	// 最终文件、中间文件和临时文件都不应存在
	require.Empty(t, f.files(t))

	_, total, err := f.core.FindExports(context.Background(), &export.FindExportInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10},
	})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestExportRejectsInvalidTrim(t *testing.T) {
	f := newFixture(t, nil)
	job := exampleJob()
	job.MinStartTime = 1020

	r := f.core.Export(context.Background(), job)
	require.Equal(t, export.StatusFailed, r.Status)
	require.ErrorIs(t, r.Err, export.ErrInvalidTrim)
	require.Empty(t, f.runner.calls())
	require.Empty(t, f.files(t))
}

func TestExportLongWindowUsesConcat(t *testing.T) {
	f := newFixture(t, func(bc *conf.Bootstrap) {
		bc.Export.MaxPlaylistSeconds = 60
		bc.Export.PageSize = 10
	})
	f.seed(t, "front", 1000, 18)

	r := f.core.Export(context.Background(), exampleJob())
	require.Equal(t, export.StatusComplete, r.Status, r.Reason)

	synth := f.runner.calls()[0]
	require.Contains(t, synth.Args, "concat")
	require.Equal(t, "file 'http://127.0.0.1:15123/vod/front/start/1010/end/1110/index.m3u8'\n"+
		"file 'http://127.0.0.1:15123/vod/front/start/1110/end/1170/index.m3u8'", synth.Stdin)
}

func TestExportDiskUsageLimit(t *testing.T) {
	f := newFixture(t, func(bc *conf.Bootstrap) {
		bc.Export.DiskUsageThreshold = 90
	}, export.WithDiskUsage(func(string) (float64, error) { return 97.5, nil }))

	r := f.core.Export(context.Background(), exampleJob())
	require.Equal(t, export.StatusFailed, r.Status)
	require.ErrorIs(t, r.Err, export.ErrDiskUsageLimit)
	require.Empty(t, f.runner.calls())
}

func TestPrepareJob(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "front", 1000, 18)

	job, err := f.core.PrepareJob(context.Background(), &export.PrepareJobInput{
		Camera: "front", StartTime: 1010, EndTime: 1170, PlaybackFactor: export.PlaybackTimelapse25x,
	})
	require.NoError(t, err)
	require.Equal(t, 1010.0, job.MinStartTime)
	require.Equal(t, 1170.0, job.MaxEndTime)
	require.EqualValues(t, 160000, job.Duration)

	job, err = f.core.PrepareJob(context.Background(), &export.PrepareJobInput{
		Camera: "front", StartTime: 1005, EndTime: 1175, PlaybackFactor: export.PlaybackRealtime,
	})
	require.NoError(t, err)
	require.Equal(t, export.Job{
		Camera:         "front",
		StartTime:      1005,
		EndTime:        1175,
		PlaybackFactor: export.PlaybackRealtime,
		MinStartTime:   1000,
		MaxEndTime:     1180,
		Duration:       180000,
	}, job)

	// 请求窗口超出录像范围时收缩
	job, err = f.core.PrepareJob(context.Background(), &export.PrepareJobInput{
		Camera: "front", StartTime: 900, EndTime: 2000, PlaybackFactor: export.PlaybackRealtime,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, job.StartTime)
	require.Equal(t, 1180.0, job.EndTime)

	_, err = f.core.PrepareJob(context.Background(), &export.PrepareJobInput{
		Camera: "back", StartTime: 1000, EndTime: 1100, PlaybackFactor: export.PlaybackRealtime,
	})
	require.Error(t, err)

	_, err = f.core.PrepareJob(context.Background(), &export.PrepareJobInput{
		Camera: "front", StartTime: 1100, EndTime: 1000, PlaybackFactor: export.PlaybackRealtime,
	})
	require.Error(t, err)
}

func TestDelExport(t *testing.T) {
	f := newFixture(t, nil)
	r := f.core.Export(context.Background(), exampleJob())
	require.Equal(t, export.StatusComplete, r.Status)

	items, _, err := f.core.FindExports(context.Background(), &export.FindExportInput{
		PagerFilter: web.PagerFilter{Page: 1, Size: 10}, Camera: "front",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	out, err := f.core.DelExport(context.Background(), items[0].ID)
	require.NoError(t, err)
	require.Equal(t, r.Path, out.Path)
	require.Empty(t, f.files(t))

	_, err = f.core.GetExport(context.Background(), items[0].ID)
	require.Error(t, err)
}

func TestRemoveLeftovers(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	for _, name := range []string{
		"in_progress.front@2024_03_01_08_05__2024_03_01_09_05.mp4",
		".front_2024_03_01_08_05__2024_03_01_09_05.mp41234",
		"front_2024_03_01_08_05__2024_03_01_09_05.mp4",
		".gitkeep",
		".nfs000000000012345",
		".front.mp4.swp",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), nil, 0o644))
	}

	require.Equal(t, 2, f.core.RemoveLeftovers())
	// 与导出无关的隐藏文件保留
	require.ElementsMatch(t, []string{
		"front_2024_03_01_08_05__2024_03_01_09_05.mp4",
		".gitkeep",
		".nfs000000000012345",
		".front.mp4.swp",
	}, f.files(t))
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.dir, 0o755))

	now := time.Now()
	for i, age := range []time.Duration{0, 48 * time.Hour, 10 * 24 * time.Hour} {
		path := filepath.Join(f.dir, fmt.Sprintf("front_%d.mp4", i))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		require.NoError(t, f.db.Create(&export.Export{
			ID:             fmt.Sprintf("id-%d", i),
			Camera:         "front",
			Path:           path,
			StartTime:      float64(i),
			EndTime:        float64(i + 1),
			Duration:       1,
			PlaybackFactor: string(export.PlaybackRealtime),
			CreatedAt:      orm.Time{Time: now.Add(-age)},
		}).Error)
	}

	require.Equal(t, 1, f.core.CleanupExpired(context.Background(), 7))
	require.ElementsMatch(t, []string{"front_0.mp4", "front_1.mp4"}, f.files(t))

	_, err := f.core.GetExport(context.Background(), "id-2")
	require.Error(t, err)
}
