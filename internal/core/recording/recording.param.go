package recording

// FindSegmentsInput 按摄像头和时间窗口查询切片
type FindSegmentsInput struct {
	Camera string  `form:"camera"`
	Start  float64 `form:"start"` // 窗口开始（秒）
	End    float64 `form:"end"`   // 窗口结束（秒）
}
