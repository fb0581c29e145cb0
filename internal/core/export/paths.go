package export

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// timestampLayout 文件名中的时间精确到分钟，使用本地时区
	timestampLayout = "2006_01_02_15_04"
	// inProgressPrefix 合成阶段的中间文件前缀
	inProgressPrefix = "in_progress."
)

// pendingName 裁剪阶段的临时文件名: "." + 最终文件名 + 随机数字
var pendingName = regexp.MustCompile(`^\.[^/\\]+_\d{4}(?:_\d{2}){4}__\d{4}(?:_\d{2}){4}\.[A-Za-z0-9]*\d$`)

// Paths 一次导出涉及的文件
// 只有 Final 会保留，Intermediate 在裁剪完成或失败后删除
type Paths struct {
	Intermediate string
	Final        string
}

// BuildPaths 由摄像头和起止时间确定文件路径，相同请求总是得到相同路径
//
//	{dir}/{camera}_{start}__{end}.{ext}
//	{dir}/in_progress.{camera}@{start}__{end}.{ext}
func BuildPaths(dir, camera string, start, end float64, ext string) Paths {
	ext = strings.TrimPrefix(ext, ".")
	s, e := formatTimestamp(start), formatTimestamp(end)
	return Paths{
		Intermediate: filepath.Join(dir, fmt.Sprintf("%s%s@%s__%s.%s", inProgressPrefix, camera, s, e, ext)),
		Final:        filepath.Join(dir, fmt.Sprintf("%s_%s__%s.%s", camera, s, e, ext)),
	}
}

func formatTimestamp(sec float64) string {
	return time.Unix(int64(math.Floor(sec)), 0).Format(timestampLayout)
}

// muxerFormat 扩展名对应的 ffmpeg 封装格式
// 裁剪输出写入临时文件，文件名不能用于推断格式
func muxerFormat(ext string) string {
	switch ext = strings.ToLower(strings.TrimPrefix(ext, ".")); ext {
	case "mkv":
		return "matroska"
	case "ts":
		return "mpegts"
	case "":
		return "mp4"
	default:
		return ext
	}
}
