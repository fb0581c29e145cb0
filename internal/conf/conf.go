package conf

import (
	"time"
)

// Bootstrap 全局配置，对应 configs/config.toml
type Bootstrap struct {
	Debug        bool              `toml:"debug" comment:"调试模式，输出更详细的日志"`
	BuildVersion string            `toml:"-"`
	Server       Server            `toml:"server"`
	Data         Data              `toml:"data"`
	Recording    Recording         `toml:"recording"`
	Export       Export            `toml:"export"`
	Cameras      map[string]Camera `toml:"cameras,omitempty" comment:"按摄像头覆盖导出参数，键为摄像头名称"`
}

type Server struct {
	HTTP ServerHTTP `toml:"http"`
}

type ServerHTTP struct {
	Port    int      `toml:"port" comment:"http 监听端口"`
	Timeout Duration `toml:"timeout" comment:"请求读写超时"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	Dsn             string   `toml:"dsn" comment:"postgres:// 或 mysql 前缀走对应驱动，其余视为 sqlite 文件"`
	MaxIdleConns    int32    `toml:"max_idle_conns"`
	MaxOpenConns    int32    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Recording 录像切片所在目录，VOD 播放列表中的切片地址相对于此目录
type Recording struct {
	StorageDir string `toml:"storage_dir"`
}

// Export 导出流水线配置
type Export struct {
	Dir                string   `toml:"dir" comment:"导出文件目录"`
	FFmpegPath         string   `toml:"ffmpeg_path"`
	Ext                string   `toml:"ext" comment:"导出文件扩展名，决定封装格式"`
	MaxPlaylistSeconds int64    `toml:"max_playlist_seconds" comment:"不超过该时长直接使用单个 VOD 地址，超过则按分页拼接"`
	PageSize           int      `toml:"page_size" comment:"录像切片分页大小"`
	VODBaseURL         string   `toml:"vod_base_url" comment:"VOD 播放列表服务地址"`
	Workers            int      `toml:"workers" comment:"同时执行的导出任务数"`
	QueueSize          int      `toml:"queue_size" comment:"等待队列长度，满了拒绝新任务"`
	Niceness           int      `toml:"niceness" comment:"ffmpeg 进程组的调度优先级，越大越低"`
	SynthesizeTimeout  Duration `toml:"synthesize_timeout"`
	TrimTimeout        Duration `toml:"trim_timeout"`
	DiskUsageThreshold float64  `toml:"disk_usage_threshold" comment:"导出目录磁盘使用率达到该百分比时拒绝导出，0 表示不检查"`
	RetainDays         int      `toml:"retain_days" comment:"导出文件保留天数，0 表示永久保留"`
	HWAccel            HWAccel  `toml:"hwaccel"`
	TimelapseArgs      []string `toml:"timelapse_args,omitempty" comment:"延时导出的输出参数"`
}

// HWAccel 硬件加速参数，Preset 优先于 Args
type HWAccel struct {
	Preset string   `toml:"preset" comment:"preset-vaapi / preset-nvidia-h264 / preset-intel-qsv-h264 / preset-rpi-64-h264"`
	Device string   `toml:"device" comment:"vaapi/qsv 设备，默认 /dev/dri/renderD128"`
	Args   []string `toml:"args,omitempty" comment:"非预设时的原始解码参数"`
}

// IsZero 未配置任何硬件加速
func (h HWAccel) IsZero() bool {
	return h.Preset == "" && len(h.Args) == 0
}

// Camera 单个摄像头的导出覆盖
type Camera struct {
	HWAccel       HWAccel  `toml:"hwaccel"`
	TimelapseArgs []string `toml:"timelapse_args,omitempty"`
}

// Duration 支持 "30m"、"1h" 形式的时长
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// HWAccelFor 摄像头未配置时回落到全局配置
func (e Export) HWAccelFor(c Camera) HWAccel {
	if !c.HWAccel.IsZero() {
		return c.HWAccel
	}
	return e.HWAccel
}

// TimelapseArgsFor 摄像头未配置时回落到全局配置
func (e Export) TimelapseArgsFor(c Camera) []string {
	if len(c.TimelapseArgs) > 0 {
		return c.TimelapseArgs
	}
	return e.TimelapseArgs
}
