// Package scheduler фоновые задачи по cron-расписанию (robfig/cron/v3, с
// секундами): часовой обход рассылки и недельный дайджест.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc задача планировщика.
type JobFunc func(ctx context.Context) error

// JobID идентификатор cron-задачи.
type JobID = cron.EntryID

// OverlapPolicy что делать, если предыдущий запуск ещё идёт.
type OverlapPolicy int

const (
	// AllowOverlap разрешает параллельные запуски.
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning пропускает запуск.
	SkipIfRunning
	// DelayIfRunning ждёт окончания предыдущего запуска.
	DelayIfRunning
)

func (p OverlapPolicy) String() string {
	switch p {
	case SkipIfRunning:
		return "skip"
	case DelayIfRunning:
		return "delay"
	default:
		return "allow"
	}
}

// JobOptions параметры задачи.
type JobOptions struct {
	Name string
	// Timeout 0 означает без ограничения, кроме остановки планировщика
	Timeout time.Duration
	Overlap OverlapPolicy
}

type job struct {
	fn      JobFunc
	opts    JobOptions
	running sync.Mutex
}

// cronLogger адаптер логгера cron к slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Config параметры планировщика.
type Config struct {
	Logger *slog.Logger
	// Location часовой пояс расписаний; nil означает UTC
	Location *time.Location
}

// Scheduler управляет cron-задачами. Контекст задач отменяется при остановке.
type Scheduler struct {
	cron      *cron.Cron
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	startOnce sync.Once
}

// New создаёт планировщик. Остановка родительского контекста останавливает его.
func New(parent context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger: logger.With("component", "cron")}),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add регистрирует задачу. Расписание с секундами: "0 0 * * * *" каждый час.
func (s *Scheduler) Add(schedule string, fn JobFunc, opts JobOptions) (JobID, error) {
	if opts.Name == "" {
		opts.Name = "unnamed"
	}
	j := &job{fn: fn, opts: opts}

	id, err := s.cron.AddFunc(schedule, func() { s.run(j) })
	if err != nil {
		return 0, fmt.Errorf("scheduler: add %s %q: %w", opts.Name, schedule, err)
	}
	s.logger.Info("cron job added", "name", opts.Name, "schedule", schedule, "overlap", opts.Overlap, "id", id)
	return id, nil
}

// Remove удаляет задачу.
func (s *Scheduler) Remove(id JobID) {
	s.cron.Remove(id)
}

// Next время следующего запуска; нулевое, если задачи нет или планировщик не запущен.
func (s *Scheduler) Next(id JobID) time.Time {
	return s.cron.Entry(id).Next
}

// Start запускает планировщик. Повторные вызовы ничего не делают.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler")
		s.cron.Start()
		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext как Stop, но ждёт не дольше ctx. Задачи уже получили отмену;
// при истечении ctx возвращается ctx.Err(), остановка доходит в фоне.
func (s *Scheduler) StopContext(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded")
		return ctx.Err()
	}
}

func (s *Scheduler) stop() {
	// cron.Stop ждёт уже запущенные задачи
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// IsRunning false после остановки.
func (s *Scheduler) IsRunning() bool {
	return s.ctx.Err() == nil
}

func (s *Scheduler) run(j *job) {
	if s.ctx.Err() != nil {
		return
	}
	switch j.opts.Overlap {
	case SkipIfRunning:
		if !j.running.TryLock() {
			s.logger.Warn("job still running, skipped", "name", j.opts.Name)
			return
		}
		defer j.running.Unlock()
	case DelayIfRunning:
		j.running.Lock()
		defer j.running.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "name", j.opts.Name, "panic", r)
		}
	}()

	ctx := s.ctx
	if j.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := j.fn(ctx)
	if err != nil {
		s.logger.Error("job failed", "name", j.opts.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("job done", "name", j.opts.Name, "duration", time.Since(start))
}
