package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/internal/core/export"
	"github.com/gowvp/exporter/internal/core/export/store/exportdb"
	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// ExportAPI 为 http 提供业务方法
type ExportAPI struct {
	exportCore export.Core
	pool       *export.Pool
}

// NewExportStore 创建导出记录存储层
func NewExportStore(db *gorm.DB) export.Storer {
	return exportdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewExportCore 创建导出核心服务
func NewExportCore(store export.Storer, segments recording.Core, bc *conf.Bootstrap) export.Core {
	return export.NewCore(store, segments, bc)
}

func NewExportAPI(core export.Core, pool *export.Pool) ExportAPI {
	return ExportAPI{exportCore: core, pool: pool}
}

func RegisterExport(g gin.IRouter, api ExportAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/exports", handler...)
	group.POST("/:camera/start/:start/end/:end", api.addExport)
	group.GET("", web.WrapH(api.findExports))
	group.GET("/:id", web.WrapH(api.getExport))
	group.DELETE("/:id", web.WrapH(api.delExport))
}

type addExportInput struct {
	PlaybackFactor export.PlaybackFactor `json:"playback_factor"`
}

type addExportOutput struct {
	Status string      `json:"status"`
	Path   string      `json:"path"`
	Reason string      `json:"reason,omitempty"`
	Job    *export.Job `json:"job,omitempty"`
}

// addExport 提交导出任务
// 默认入队后立即返回 202，?wait=true 时等待导出结束
func (a ExportAPI) addExport(c *gin.Context) {
	var in addExportInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			web.Fail(c, reason.ErrBadRequest.SetMsg(err.Error()))
			return
		}
	}
	if in.PlaybackFactor == "" {
		in.PlaybackFactor = export.PlaybackRealtime
	}
	start, end, err := parseWindow(c)
	if err != nil {
		web.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	job, err := a.exportCore.PrepareJob(ctx, &export.PrepareJobInput{
		Camera:         c.Param("camera"),
		StartTime:      start,
		EndTime:        end,
		PlaybackFactor: in.PlaybackFactor,
	})
	if err != nil {
		web.Fail(c, err)
		return
	}

	done, err := a.pool.Submit(job)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, export.ErrQueueFull) || errors.Is(err, export.ErrPoolClosed) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"code": 1, "msg": err.Error()})
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		c.JSON(http.StatusAccepted, addExportOutput{Status: "queued", Path: a.exportCore.Paths(job).Final, Job: &job})
		return
	}
	select {
	case r := <-done:
		code := http.StatusOK
		if r.Status == export.StatusFailed {
			code = http.StatusInternalServerError
		}
		c.JSON(code, addExportOutput{Status: string(r.Status), Path: r.Path, Reason: r.Reason, Job: &job})
	case <-ctx.Done():
	}
}

// findExports 分页查询导出记录
func (a ExportAPI) findExports(c *gin.Context, in *export.FindExportInput) (any, error) {
	items, total, err := a.exportCore.FindExports(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a ExportAPI) getExport(c *gin.Context, _ *struct{}) (*export.Export, error) {
	return a.exportCore.GetExport(c.Request.Context(), c.Param("id"))
}

func (a ExportAPI) delExport(c *gin.Context, _ *struct{}) (*export.Export, error) {
	return a.exportCore.DelExport(c.Request.Context(), c.Param("id"))
}

// parseWindow 解析路径中的起止时间（秒）
func parseWindow(c *gin.Context) (float64, float64, error) {
	start, err := strconv.ParseFloat(c.Param("start"), 64)
	if err != nil {
		return 0, 0, reason.ErrBadRequest.Withf("invalid start[%s]", c.Param("start"))
	}
	end, err := strconv.ParseFloat(c.Param("end"), 64)
	if err != nil {
		return 0, 0, reason.ErrBadRequest.Withf("invalid end[%s]", c.Param("end"))
	}
	if end <= start {
		return 0, 0, reason.ErrBadRequest.Withf("invalid window start[%v] end[%v]", start, end)
	}
	return start, end, nil
}
