package worker

import (
	"time"

	"relay-system/internal/model"
	"relay-system/internal/service"
	"relay-system/pkg/logger"

	"go.uber.org/zap"
)

// 每轮扫描最多重新入队的消息数
const sweepBatchSize = 100

// StaleStore 补偿扫描需要的查询能力
type StaleStore interface {
	FindStalePending(before time.Time, limit int) ([]*model.RelayMessage, error)
}

// Sweeper 补偿扫描器
// 定期查找卡在pending超过SLA的消息重新入队，兜住入队失败、worker崩溃、
// 停机时未排空等情况；重复入队是安全的，处理器有pending守卫
type Sweeper struct {
	store      StaleStore
	dispatcher *Dispatcher
	clock      service.Clock
	interval   time.Duration
	sla        time.Duration
	stop       chan struct{}
	done       chan struct{}
}

// NewSweeper 创建Sweeper实例
func NewSweeper(store StaleStore, dispatcher *Dispatcher, clock service.Clock, interval, sla time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		interval:   interval,
		sla:        sla,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start 启动后台扫描
func (s *Sweeper) Start() {
	go s.loop()
	logger.Info("补偿扫描启动",
		zap.Duration("interval", s.interval),
		zap.Duration("pending_sla", s.sla),
	)
}

func (s *Sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep 扫描一轮
func (s *Sweeper) sweep() {
	stale, err := s.store.FindStalePending(s.clock.Now().Add(-s.sla), sweepBatchSize)
	if err != nil {
		logger.Error("补偿扫描查询失败", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	requeued := 0
	for _, m := range stale {
		if err := s.dispatcher.Dispatch(m.ID); err != nil {
			// 队列满或已停止，下一轮再试
			logger.Warn("补偿入队失败",
				zap.Uint("message_id", m.ID),
				zap.Error(err),
			)
			break
		}
		requeued++
	}
	logger.Info("补偿扫描重新入队",
		zap.Int("stale", len(stale)),
		zap.Int("requeued", requeued),
	)
}

// Stop 停止扫描并等待当前轮结束
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
