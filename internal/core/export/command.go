package export

import (
	"fmt"

	"github.com/gowvp/exporter/internal/conf"
	"github.com/gowvp/exporter/pkg/ffwork"
)

// timelapseInputArgs 延时导出去掉音频，只解码关键帧
var timelapseInputArgs = []string{"-an", "-skip_frame", "nokey"}

const defaultHWDevice = "/dev/dri/renderD128"

// hwPreset 硬件加速预设，input 放在输入之前，encode 为视频编码参数
type hwPreset struct {
	input  func(device string) []string
	encode []string
}

var hwPresets = map[string]hwPreset{
	"preset-vaapi": {
		input: func(device string) []string {
			return []string{"-hwaccel", "vaapi", "-hwaccel_device", device, "-hwaccel_output_format", "vaapi"}
		},
		encode: []string{"-c:v", "h264_vaapi"},
	},
	"preset-nvidia-h264": {
		input: func(string) []string {
			return []string{"-hwaccel", "cuda", "-hwaccel_output_format", "cuda", "-extra_hw_frames", "8"}
		},
		encode: []string{"-c:v", "h264_nvenc"},
	},
	"preset-intel-qsv-h264": {
		input: func(device string) []string {
			return []string{"-hwaccel", "qsv", "-qsv_device", device, "-hwaccel_output_format", "qsv"}
		},
		encode: []string{"-c:v", "h264_qsv"},
	},
	"preset-rpi-64-h264": {
		input:  func(string) []string { return nil },
		encode: []string{"-c:v", "h264_v4l2m2m"},
	},
}

// softwareEncode 未使用预设时软件编码
var softwareEncode = []string{"-c:v", "libx264", "-preset:v", "ultrafast", "-tune:v", "zerolatency"}

// hwaccelArgs 返回解码参数和编码参数，未配置预设时原样使用 Args
func hwaccelArgs(h conf.HWAccel) (input, encode []string, err error) {
	if h.Preset == "" {
		return h.Args, softwareEncode, nil
	}
	p, ok := hwPresets[h.Preset]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPreset, h.Preset)
	}
	device := h.Device
	if device == "" {
		device = defaultHWDevice
	}
	return p.input(device), p.encode, nil
}

// CommandBuilder 生成第一遍合成命令，参数逐项构造，路径中的空格不会被拆开
type CommandBuilder struct {
	ffmpeg  string
	export  conf.Export
	cameras map[string]conf.Camera
}

func NewCommandBuilder(cfg conf.Export, cameras map[string]conf.Camera) CommandBuilder {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	return CommandBuilder{ffmpeg: path, export: cfg, cameras: cameras}
}

// Synthesize 原速直接复制码流，延时使用硬件加速预设重新编码
func (b CommandBuilder) Synthesize(job Job, in Input, output string) (ffwork.Cmd, error) {
	args := []string{"-hide_banner"}
	switch job.PlaybackFactor {
	case PlaybackRealtime:
		args = append(args, in.Args...)
		args = append(args, "-c", "copy", output)
	case PlaybackTimelapse25x:
		cam := b.cameras[job.Camera]
		hwInput, encode, err := hwaccelArgs(b.export.HWAccelFor(cam))
		if err != nil {
			return ffwork.Cmd{}, err
		}
		args = append(args, hwInput...)
		args = append(args, timelapseInputArgs...)
		args = append(args, in.Args...)
		args = append(args, encode...)
		args = append(args, b.export.TimelapseArgsFor(cam)...)
		args = append(args, output)
	default:
		return ffwork.Cmd{}, fmt.Errorf("%w: playback_factor[%s]", ErrInvalidWindow, job.PlaybackFactor)
	}
	return ffwork.Cmd{Path: b.ffmpeg, Args: args, Stdin: in.Stdin()}, nil
}

// Trim 第二遍裁剪，输入端 -ss/-to 定位到请求窗口后直接复制码流
func (b CommandBuilder) Trim(w TrimWindow, input, output string) ffwork.Cmd {
	return ffwork.Cmd{
		Path: b.ffmpeg,
		Args: []string{
			"-hide_banner", "-y",
			"-ss", formatSeconds(w.Seek),
			"-to", formatSeconds(w.End),
			"-i", input,
			"-c", "copy",
			"-f", muxerFormat(b.export.Ext),
			output,
		},
	}
}
