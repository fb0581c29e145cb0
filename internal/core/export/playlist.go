package export

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/gowvp/exporter/internal/core/recording"
)

// SegmentSource 录像切片查询，recording.Core 实现了该接口
type SegmentSource interface {
	FindSegments(ctx context.Context, in *recording.FindSegmentsInput, fn func(page []*recording.Recording) error) error
	Bounds(ctx context.Context, in *recording.FindSegmentsInput) (*recording.Bounds, error)
}

// concatInput 长时间导出时从标准输入读取 concat 列表
const concatInput = "/dev/stdin"

var protocolWhitelist = []string{"-protocol_whitelist", "pipe,file,http,tcp"}

// Input ffmpeg 输入描述
// Lines 不为空时以换行拼接后作为子进程标准输入
type Input struct {
	Args   []string
	Lines  []string
	Concat bool
}

// Stdin 子进程标准输入
func (in Input) Stdin() string {
	return strings.Join(in.Lines, "\n")
}

// VODURL 指定摄像头和时间段的 VOD 播放列表地址
func VODURL(baseURL, camera string, start, end float64) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/vod/")
	b.WriteString(url.PathEscape(camera))
	b.WriteString("/start/")
	b.WriteString(formatSeconds(start))
	b.WriteString("/end/")
	b.WriteString(formatSeconds(end))
	b.WriteString("/index.m3u8")
	return b.String()
}

// concatLine ffmpeg concat 格式的一行，单引号需要转义
func concatLine(u string) string {
	return "file '" + strings.ReplaceAll(u, "'", `'\''`) + "'"
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PlaylistBuilder 根据窗口时长选择输入方式
type PlaylistBuilder struct {
	source     SegmentSource
	baseURL    string
	maxSeconds float64
}

func NewPlaylistBuilder(source SegmentSource, baseURL string, maxPlaylistSeconds int64) PlaylistBuilder {
	return PlaylistBuilder{source: source, baseURL: baseURL, maxSeconds: float64(maxPlaylistSeconds)}
}

// IsLong 超过阈值的窗口按切片分页拼接
func (b PlaylistBuilder) IsLong(job Job) bool {
	return job.Seconds() > b.maxSeconds
}

// Build 短窗口直接引用一个 VOD 地址，由 VOD 服务拼接切片
// 长窗口每页切片生成一行 concat，覆盖该页首个切片开始到最后一个切片结束
// 窗口内没有切片时返回空列表，由编码阶段报错
func (b PlaylistBuilder) Build(ctx context.Context, job Job) (Input, error) {
	if !b.IsLong(job) {
		args := append([]string{"-y"}, protocolWhitelist...)
		args = append(args, "-i", VODURL(b.baseURL, job.Camera, job.StartTime, job.EndTime))
		return Input{Args: args}, nil
	}

	lines := make([]string, 0, 4)
	err := b.source.FindSegments(ctx, &recording.FindSegmentsInput{
		Camera: job.Camera,
		Start:  job.StartTime,
		End:    job.EndTime,
	}, func(page []*recording.Recording) error {
		first, last := page[0], page[len(page)-1]
		lines = append(lines, concatLine(VODURL(b.baseURL, job.Camera, first.StartTime, last.EndTime)))
		return nil
	})
	if err != nil {
		return Input{}, err
	}

	args := append([]string{"-y"}, protocolWhitelist...)
	args = append(args, "-f", "concat", "-safe", "0", "-i", concatInput)
	return Input{Args: args, Lines: lines, Concat: true}, nil
}
