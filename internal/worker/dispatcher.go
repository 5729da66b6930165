package worker

import (
	"context"
	"errors"
	"sync"

	"relay-system/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 任务队列已满
	ErrQueueFull = errors.New("refine queue is full")
	// ErrStopped 调度器已停止
	ErrStopped = errors.New("dispatcher stopped")
)

// ProcessFunc 单条消息的处理函数
type ProcessFunc func(ctx context.Context, messageID uint)

// Dispatcher 后台润色任务调度器
// 固定数量的worker消费一个有界队列，Dispatch非阻塞，队列满时直接报错，
// 丢掉的任务由补偿扫描兜底
type Dispatcher struct {
	queue   chan uint
	process ProcessFunc
	workers int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher 创建Dispatcher实例
func NewDispatcher(workers, queueSize int, process ProcessFunc) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:   make(chan uint, queueSize),
		process: process,
		workers: workers,
	}
}

// Start 启动worker
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	logger.Info("润色调度器启动",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
	)
}

func (d *Dispatcher) run(id int) {
	defer d.wg.Done()
	for messageID := range d.queue {
		d.process(context.Background(), messageID)
	}
	logger.Info("润色worker退出", zap.Int("worker", id))
}

// Dispatch 把消息入队等待润色，非阻塞
// 队列满返回ErrQueueFull，已停止返回ErrStopped
func (d *Dispatcher) Dispatch(messageID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- messageID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop 停止接收新任务并等待队列中的任务处理完毕
// ctx超时则不再等待（未完成的任务留在pending，由补偿扫描接管）
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("润色调度器已排空退出")
		return nil
	case <-ctx.Done():
		logger.Warn("润色调度器退出超时，剩余任务交给补偿扫描")
		return ctx.Err()
	}
}
