package export

import "fmt"

// TrimWindow 请求窗口在中间文件时间轴上的位置（秒）
// 中间文件覆盖 [MinStartTime, MaxEndTime]，需要裁掉首尾多余的部分
type TrimWindow struct {
	Seek float64
	End  float64
}

// Duration 裁剪后的时长
func (w TrimWindow) Duration() float64 {
	return w.End - w.Seek
}

// TrimWindowFor 计算裁剪位置
//
//	seek = start - min_start
//	end  = duration/1000 - (max_end - end)
//
// End 是中间文件时间轴上的结束位置，不是时长，对应 ffmpeg 输入侧的 -to
// 裁剪结果时长为 End - Seek，例如 seek=10 end=170 得到 160 秒，覆盖 [1010,1170]
// 任一值为负或 end <= seek 时返回 ErrInvalidTrim，不会交给 ffmpeg
func TrimWindowFor(job Job) (TrimWindow, error) {
	if job.MinStartTime > job.StartTime || job.EndTime > job.MaxEndTime {
		return TrimWindow{}, fmt.Errorf("%w: window[%v,%v] outside segments[%v,%v]",
			ErrInvalidTrim, job.StartTime, job.EndTime, job.MinStartTime, job.MaxEndTime)
	}
	w := TrimWindow{
		Seek: job.StartTime - job.MinStartTime,
		End:  float64(job.Duration)/1000 - (job.MaxEndTime - job.EndTime),
	}
	if w.Seek < 0 || w.End < 0 || w.End <= w.Seek {
		return TrimWindow{}, fmt.Errorf("%w: seek[%v] end[%v]", ErrInvalidTrim, w.Seek, w.End)
	}
	return w, nil
}
