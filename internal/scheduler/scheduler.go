package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer 定时任务的执行目标
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// Scheduler 按 cron 表达式周期性同步所有房源
// 上一轮未结束时跳过本轮，同一房源的互斥仍由同步租约保证
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New 创建调度器；spec 为空时返回 nil，表示不启用定时同步
// timeout 为单轮同步的最长时间，<=0 表示不限
func New(spec string, syncer Syncer, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		return nil, nil
	}

	cl := &cronLogger{sugar: logger.Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		syncer:  syncer,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("无效的同步 cron 表达式 %q: %w", spec, err)
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("定时同步已启动", zap.Int("entries", len(s.cron.Entries())))
}

// Stop 停止调度并取消进行中的同步，最多等待到 ctx 结束
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		done := s.cron.Stop()
		s.cancel()
		select {
		case <-done.Done():
			s.logger.Info("定时同步已停止")
		case <-ctx.Done():
			s.logger.Warn("等待同步任务退出超时")
		}
	})
}

// RunOnce 立即执行一轮同步
func (s *Scheduler) RunOnce() {
	s.run()
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.syncer.SyncAll(ctx); err != nil {
		s.logger.Error("定时同步失败", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Debug("定时同步完成", zap.Duration("elapsed", time.Since(start)))
}

// ── cron.Logger 适配 ──

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
