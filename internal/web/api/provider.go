package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/internal/core/export"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewRecordingStore, NewRecordingCore, NewVODAPI,
	NewExportStore, NewExportCore, NewExportPool, NewExportAPI,
)

type Usecase struct {
	Conf      *conf.Bootstrap
	DB        *gorm.DB
	ExportAPI ExportAPI
	VODAPI    VODAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	if !uc.Conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	setupRouter(g, uc)
	return g
}

// NewExportPool 创建导出任务池
// 启动 worker 前先清理上次遗留的文件，返回的 cleanup 会取消执行中的导出
func NewExportPool(core export.Core, bc *conf.Bootstrap) (*export.Pool, func(), error) {
	core.RemoveLeftovers()

	pool := export.NewPool(core, bc.Export.Workers, bc.Export.QueueSize)
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go core.StartCleanupWorker(ctx, bc.Export.RetainDays)

	return pool, func() {
		cancel()
		pool.Stop()
	}, nil
}
