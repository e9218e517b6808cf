package internal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval 背景清掃週期
const DefaultSweepInterval = time.Minute

// Scheduler 背景清掃排程器
//
// 兩階段啟動：
//   - NewScheduler 只建立物件，不啟動 goroutine
//   - 呈現層回報 ready 後才呼叫 Start，避免清掃跑在尚未就緒的 RenderSink 上
//
// 平台斷線重連時會再次觸發 ready，Start 以 sync.Once 保證只啟動一次。
type Scheduler struct {
	interval time.Duration
	tick     func(ctx context.Context)
	logger   *slog.Logger

	once    sync.Once
	started bool
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler 創建排程器
func NewScheduler(interval time.Duration, tick func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		interval: interval,
		tick:     tick,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 啟動清掃迴圈；已啟動過則回傳 false
func (s *Scheduler) Start(ctx context.Context) bool {
	started := false
	s.once.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()

		s.wg.Add(1)
		go s.loop(ctx)
		started = true

		s.logger.Info("清掃排程已啟動", "interval", s.interval)
	})
	return started
}

// Stop 停止排程器並等待迴圈結束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCh:
		return
	default:
		close(s.stopCh)
	}

	if s.started {
		s.wg.Wait()
		s.logger.Info("清掃排程已停止")
	}
}

// loop 清掃迴圈
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runTick(ctx)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// runTick 單次清掃，panic 也不會讓迴圈停止
func (s *Scheduler) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("清掃時發生 panic", "error", r)
		}
	}()
	s.tick(ctx)
}
