package export

import "github.com/ixugo/goddd/pkg/web"

// PrepareJobInput 导出请求，切片边界由查询得到
type PrepareJobInput struct {
	Camera         string         `json:"camera"`
	StartTime      float64        `json:"start_time"`
	EndTime        float64        `json:"end_time"`
	PlaybackFactor PlaybackFactor `json:"playback_factor"`
}

// FindExportInput 导出记录分页查询
type FindExportInput struct {
	web.PagerFilter
	Camera string `form:"camera"`
}
