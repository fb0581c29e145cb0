package recording

// Recording 录像切片，由录制服务写入，每条记录对应一个固定时长的文件
type Recording struct {
	ID        string  `gorm:"primaryKey;size:30" json:"id"`
	Camera    string  `gorm:"size:20;notNull;index:recordings_camera_start_time_end_time,priority:1" json:"camera"`
	Path      string  `gorm:"size:255;notNull" json:"path"`                                                     // 相对 storage_dir 的路径
	StartTime float64 `gorm:"notNull;index:recordings_camera_start_time_end_time,priority:2" json:"start_time"` // 开始时间（秒）
	EndTime   float64 `gorm:"notNull;index:recordings_camera_start_time_end_time,priority:3" json:"end_time"`   // 结束时间（秒）
	Duration  float64 `gorm:"notNull" json:"duration"`                                                          // 时长（秒）
}

// TableName 与录制服务共用 recordings 表
func (*Recording) TableName() string {
	return "recordings"
}

// Bounds 时间窗口内录像切片的实际覆盖范围
// 切片边界比请求窗口更粗，MinStartTime <= 窗口开始，MaxEndTime >= 窗口结束
type Bounds struct {
	MinStartTime float64 `json:"min_start_time"`
	MaxEndTime   float64 `json:"max_end_time"`
	Count        int64   `json:"count"`
}

// IsEmpty 窗口内没有任何切片
func (b Bounds) IsEmpty() bool {
	return b.Count == 0
}
