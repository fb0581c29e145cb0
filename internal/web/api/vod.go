package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/internal/core/export"
	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/gowvp/exporter/internal/core/recording/store/recordingdb"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// staticRecordingsPrefix 切片文件的访问路径
const staticRecordingsPrefix = "/static/recordings"

// VODAPI 按时间段生成 VOD 播放列表，供导出合成阶段读取
type VODAPI struct {
	recordingCore recording.Core
	conf          *conf.Bootstrap
}

// NewRecordingStore 创建录像存储层
func NewRecordingStore(db *gorm.DB) recording.Storer {
	return recordingdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewRecordingCore 创建录像查询服务
func NewRecordingCore(store recording.Storer, bc *conf.Bootstrap) recording.Core {
	return recording.NewCore(store, recording.WithPageSize(bc.Export.PageSize))
}

func NewVODAPI(core recording.Core, bc *conf.Bootstrap) VODAPI {
	return VODAPI{recordingCore: core, conf: bc}
}

func RegisterVOD(g gin.IRouter, api VODAPI, handler ...gin.HandlerFunc) {
	g.GET("/vod/:camera/start/:start/end/:end/index.m3u8", append(handler, api.playlist)...)

	// 静态文件服务，ffmpeg 通过播放列表中的地址读取切片
	if dir := api.conf.Recording.StorageDir; dir != "" {
		slog.Info("注册录像静态文件服务", "path", staticRecordingsPrefix, "dir", dir)
		g.Static(staticRecordingsPrefix, dir)
	}
}

// playlist 返回与时间段有重叠的完整切片，不在切片内部裁剪
// 路径: /vod/:camera/start/:start/end/:end/index.m3u8
func (a VODAPI) playlist(c *gin.Context) {
	camera := c.Param("camera")
	if err := export.ValidateCamera(camera); err != nil {
		web.Fail(c, reason.ErrBadRequest.SetMsg(err.Error()))
		return
	}
	start, end, err := parseWindow(c)
	if err != nil {
		web.Fail(c, err)
		return
	}

	segments, err := a.recordingCore.AllSegments(c.Request.Context(), &recording.FindSegmentsInput{
		Camera: camera,
		Start:  start,
		End:    end,
	})
	if err != nil {
		web.Fail(c, err)
		return
	}
	if len(segments) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "no recordings found in time range"})
		return
	}

	body, err := buildVODPlaylist(segments, staticRecordingsPrefix)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, body)
}

// buildVODPlaylist 按切片顺序生成 VOD m3u8
// 每个切片是独立的 mp4，时间戳各自从 0 开始，切片之间需要 EXT-X-DISCONTINUITY
func buildVODPlaylist(segments []*recording.Recording, prefix string) (string, error) {
	// winSize=0 表示 VOD，不使用滑动窗口
	pl, err := m3u8.NewMediaPlaylist(0, uint(len(segments)))
	if err != nil {
		return "", err
	}
	pl.MediaType = m3u8.VOD

	for i, rec := range segments {
		uri := prefix + "/" + escapePath(strings.TrimPrefix(rec.Path, "/"))
		if err := pl.Append(uri, rec.EndTime-rec.StartTime, ""); err != nil {
			return "", err
		}
		// 标记作用于刚追加的切片
		if i > 0 {
			if err := pl.SetDiscontinuity(); err != nil {
				return "", err
			}
		}
	}
	pl.Close()
	return pl.String(), nil
}

// escapePath 逐段转义，保留路径分隔符
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
