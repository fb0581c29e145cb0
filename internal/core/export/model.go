package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ixugo/goddd/pkg/orm"
)

// PlaybackFactor 导出速度
type PlaybackFactor string

const (
	PlaybackRealtime     PlaybackFactor = "realtime"      // 原速，直接复制码流
	PlaybackTimelapse25x PlaybackFactor = "timelapse_25x" // 25 倍速延时，重新编码
)

// Valid 是否为支持的导出速度
func (p PlaybackFactor) Valid() bool {
	return p == PlaybackRealtime || p == PlaybackTimelapse25x
}

var (
	ErrInvalidWindow  = errors.New("invalid export window")
	ErrInvalidTrim    = errors.New("invalid trim window")
	ErrInvalidCamera  = errors.New("invalid camera name")
	ErrUnknownPreset  = errors.New("unknown hwaccel preset")
	ErrQueueFull      = errors.New("export queue is full")
	ErrPoolClosed     = errors.New("export pool is closed")
	ErrDiskUsageLimit = errors.New("export disk usage over threshold")
)

// Job 一次导出任务
// MinStartTime/MaxEndTime 为覆盖请求窗口的首尾切片边界，比请求窗口更粗
// 满足 MinStartTime <= StartTime < EndTime <= MaxEndTime
type Job struct {
	Camera         string         `json:"camera"`
	StartTime      float64        `json:"start_time"` // 请求开始时间（秒）
	EndTime        float64        `json:"end_time"`   // 请求结束时间（秒）
	PlaybackFactor PlaybackFactor `json:"playback_factor"`
	MinStartTime   float64        `json:"min_start_time"`
	MaxEndTime     float64        `json:"max_end_time"`
	Duration       int64          `json:"duration"` // 切片总跨度（毫秒）
}

// Seconds 请求窗口时长
func (j Job) Seconds() float64 {
	return j.EndTime - j.StartTime
}

// Validate 校验任务参数，非法任务不会启动任何子进程
func (j Job) Validate() error {
	if err := ValidateCamera(j.Camera); err != nil {
		return err
	}
	if !j.PlaybackFactor.Valid() {
		return fmt.Errorf("%w: playback_factor[%s]", ErrInvalidWindow, j.PlaybackFactor)
	}
	for _, v := range []float64{j.StartTime, j.EndTime, j.MinStartTime, j.MaxEndTime} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite timestamp", ErrInvalidWindow)
		}
	}
	if j.EndTime <= j.StartTime {
		return fmt.Errorf("%w: start[%v] end[%v]", ErrInvalidWindow, j.StartTime, j.EndTime)
	}
	_, err := TrimWindowFor(j)
	return err
}

// ValidateCamera 摄像头名称会拼进文件名和 URL，不允许路径分隔符
func ValidateCamera(camera string) error {
	if camera == "" || strings.ContainsAny(camera, `/\`) || strings.Contains(camera, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidCamera, camera)
	}
	return nil
}

// Status 导出结果状态
type Status string

const (
	StatusComplete Status = "complete"
	StatusSkipped  Status = "skipped" // 目标文件已存在
	StatusFailed   Status = "failed"
)

// Result 导出结果，失败时 Reason 说明原因
type Result struct {
	Status Status `json:"status"`
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

func failed(path string, err error) Result {
	return Result{Status: StatusFailed, Path: path, Reason: err.Error(), Err: err}
}

// Export 已完成的导出文件
type Export struct {
	ID             string   `gorm:"primaryKey;size:36" json:"id"`
	Camera         string   `gorm:"size:20;notNull;index:exports_camera_start_time_end_time,priority:1" json:"camera"`
	Path           string   `gorm:"size:255;notNull;uniqueIndex:exports_path" json:"path"`
	StartTime      float64  `gorm:"notNull;index:exports_camera_start_time_end_time,priority:2" json:"start_time"` // 请求开始时间（秒）
	EndTime        float64  `gorm:"notNull;index:exports_camera_start_time_end_time,priority:3" json:"end_time"`   // 请求结束时间（秒）
	Duration       float64  `gorm:"notNull" json:"duration"`                                                       // 导出时长（秒）
	PlaybackFactor string   `gorm:"size:20;notNull;default:''" json:"playback_factor"`
	CreatedAt      orm.Time `gorm:"column:created_at;notNull;default:CURRENT_TIMESTAMP;index;comment:创建时间" json:"created_at"`
}

// TableName database table name
func (*Export) TableName() string {
	return "exports"
}
