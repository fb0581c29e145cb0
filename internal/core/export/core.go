package export

import (
	"context"

	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/pkg/ffwork"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Storer data persistence
type Storer interface {
	Export() ExportStorer
}

// ExportStorer Instantiation interface
type ExportStorer interface {
	Find(context.Context, *[]*Export, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Export, ...orm.QueryOption) error
	Add(context.Context, *Export) error
	Del(context.Context, *Export, ...orm.QueryOption) error

	Session(context.Context, ...func(*gorm.DB) error) error
}

// Runner 执行 ffmpeg 子进程，*ffwork.Runner 实现了该接口
type Runner interface {
	Run(context.Context, ffwork.Cmd) (ffwork.Result, error)
}

// Core business domain
type Core struct {
	store    Storer
	source   SegmentSource
	conf     conf.Export
	playlist PlaylistBuilder
	commands CommandBuilder
	runner   Runner

	// diskUsage 返回目录所在磁盘的使用率（百分比）
	diskUsage func(dir string) (float64, error)
	// group 相同目标文件的导出合并为一次执行
	group *singleflight.Group
}

type Option func(*Core)

// WithRunner 替换子进程执行器
func WithRunner(r Runner) Option {
	return func(c *Core) {
		c.runner = r
	}
}

// WithDiskUsage 替换磁盘使用率查询
func WithDiskUsage(fn func(dir string) (float64, error)) Option {
	return func(c *Core) {
		c.diskUsage = fn
	}
}

// NewCore create business domain
func NewCore(store Storer, source SegmentSource, bc *conf.Bootstrap, opts ...Option) Core {
	c := Core{
		store:     store,
		source:    source,
		conf:      bc.Export,
		playlist:  NewPlaylistBuilder(source, bc.Export.VODBaseURL, bc.Export.MaxPlaylistSeconds),
		commands:  NewCommandBuilder(bc.Export, bc.Cameras),
		runner:    ffwork.NewRunner(),
		diskUsage: diskUsedPercent,
		group:     new(singleflight.Group),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Paths 任务对应的中间文件和最终文件
func (c Core) Paths(job Job) Paths {
	return BuildPaths(c.conf.Dir, job.Camera, job.StartTime, job.EndTime, c.conf.Ext)
}

func diskUsedPercent(dir string) (float64, error) {
	u, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return u.UsedPercent, nil
}
