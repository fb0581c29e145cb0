package ffwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

// DefaultLogLines 保留 ffmpeg stderr 的最后若干行用于诊断
const DefaultLogLines = 100

const maxLineSize = 64 * 1024

var ErrEmptyCommand = errors.New("ffwork: empty command")

// lowerPriority 调整子进程组优先级，测试中可替换
var lowerPriority = setPriority

type (
	// Cmd 一次 ffmpeg 调用，Args 为结构化参数，不经过 shell 拼接
	Cmd struct {
		Path  string
		Args  []string
		Stdin string
		// Niceness 大于 0 时降低子进程组的调度优先级
		Niceness int
		// WaitDelay 上下文取消后等待进程退出的时间，超过则强制 kill
		WaitDelay time.Duration
	}
	Result struct {
		ExitCode int
		Log      []string
		Elapsed  time.Duration
	}
	// ExitError 进程非 0 退出或被取消
	ExitError struct {
		Code int
		Log  []string
		Err  error
	}
)

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg exit code %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// String 便于日志输出完整命令
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner 执行 ffmpeg 子进程
type Runner struct {
	logLines int
}

func NewRunner() *Runner {
	return &Runner{logLines: DefaultLogLines}
}

// Run 阻塞直到子进程退出
// 子进程在独立进程组中运行，ctx 取消时整组终止
func (r *Runner) Run(ctx context.Context, c Cmd) (Result, error) {
	if c.Path == "" {
		return Result{ExitCode: -1}, ErrEmptyCommand
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	ffmpegLog := newLineWriter(r.logLines)
	cmd.Stderr = ffmpegLog

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	if c.Niceness > 0 {
		// 只影响本次导出的子进程组，不改变当前进程
		if err := lowerPriority(cmd.Process.Pid, c.Niceness); err != nil {
			slog.WarnContext(ctx, "failed to lower ffmpeg priority", "pid", cmd.Process.Pid, "niceness", c.Niceness, "err", err)
		}
	}

	waitErr := cmd.Wait()
	out := Result{
		ExitCode: -1,
		Log:      ffmpegLog.Lines(),
		Elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			waitErr = fmt.Errorf("%w: %w", ctxErr, waitErr)
		}
		return out, &ExitError{Code: out.ExitCode, Log: out.Log, Err: waitErr}
	}
	return out, nil
}

// lineWriter 按行写入环形队列，ffmpeg 的警告和错误信息都会输出到 stderr
type lineWriter struct {
	m       sync.Mutex
	partial []byte
	lines   *queue.CirQueue[string]
}

func newLineWriter(size int) *lineWriter {
	return &lineWriter{lines: queue.NewCirQueue[string](size)}
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.m.Lock()
	defer w.m.Unlock()
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.push(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	// 单行过长时直接截断入队，避免无限增长
	if len(w.partial) > maxLineSize {
		w.push(w.partial)
		w.partial = w.partial[:0]
	}
	return len(p), nil
}

func (w *lineWriter) push(line []byte) {
	w.lines.Push(string(bytes.TrimRight(line, "\r")))
}

// Lines 返回最后若干行，未以换行结尾的内容也包含在内
func (w *lineWriter) Lines() []string {
	w.m.Lock()
	defer w.m.Unlock()
	if len(w.partial) > 0 {
		w.push(w.partial)
		w.partial = nil
	}
	return w.lines.Range()
}
