package export

import (
	"context"
	"log/slog"
	"sync"
)

// Exporter 执行单个导出任务，Core 实现了该接口
type Exporter interface {
	Export(ctx context.Context, job Job) Result
}

type task struct {
	job  Job
	done chan Result
}

// Pool 固定数量的 worker 从有界队列中取任务
// 每个任务的结果通过各自的 channel 返回
type Pool struct {
	exporter Exporter
	tasks    chan task
	workers  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	m      sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool workers 或 queueSize 非正数时使用 1
func NewPool(exporter Exporter, workers, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		exporter: exporter,
		tasks:    make(chan task, max(queueSize, 1)),
		workers:  max(workers, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动 worker，重复调用无效
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for range p.workers {
			p.wg.Add(1)
			go p.work()
		}
		slog.Info("export pool started", "workers", p.workers, "queue_size", cap(p.tasks))
	})
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.tasks {
		queueDepth.Set(float64(len(p.tasks)))

		var r Result
		if err := p.ctx.Err(); err != nil {
			r = failed("", err)
		} else {
			r = p.exporter.Export(p.ctx, t.job)
		}
		if r.Status == StatusFailed {
			slog.Error("export failed", "camera", t.job.Camera, "path", r.Path, "reason", r.Reason)
		}
		t.done <- r
		close(t.done)
	}
}

// Submit 任务入队后立即返回，队列已满时返回 ErrQueueFull
// 返回的 channel 有缓冲，调用方不读取也不会阻塞 worker
func (p *Pool) Submit(job Job) (<-chan Result, error) {
	p.m.RLock()
	defer p.m.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	t := task{job: job, done: make(chan Result, 1)}
	select {
	case p.tasks <- t:
		queueDepth.Set(float64(len(p.tasks)))
		return t.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Stop 停止接收任务，取消执行中的导出并等待 worker 退出
// 队列中尚未开始的任务以失败结束
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.m.Lock()
		p.closed = true
		close(p.tasks)
		p.m.Unlock()

		p.cancel()
		p.wg.Wait()
		queueDepth.Set(0)
	})
}
