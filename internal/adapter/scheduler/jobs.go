package scheduler

import (
	"context"
	"time"

	"dailydev/internal/digest"
	"dailydev/internal/dispatch"
)

// Расписания по умолчанию (с секундами).
const (
	DefaultSweepSchedule  = "0 0 * * * *"
	DefaultDigestSchedule = "0 0 18 * * SUN"
)

// Outreach операции ядра, которые запускает планировщик.
type Outreach interface {
	RunSweepOnce(ctx context.Context) (dispatch.SweepStats, error)
	SendWeeklyDigest(ctx context.Context) (digest.Stats, error)
}

// JobsConfig расписания и таймауты задач. Пустое DigestSchedule отключает дайджест.
type JobsConfig struct {
	SweepSchedule  string
	SweepTimeout   time.Duration
	DigestSchedule string
	DigestTimeout  time.Duration
}

// RegisterOutreach добавляет обход рассылки и дайджест. Обе задачи не
// перекрываются сами с собой.
func RegisterOutreach(s *Scheduler, o Outreach, cfg JobsConfig) error {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
	_, err := s.Add(cfg.SweepSchedule, func(ctx context.Context) error {
		stats, err := o.RunSweepOnce(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("sweep finished",
			"candidates", stats.Candidates, "matched", stats.Matched, "sent", stats.Sent,
			"skipped", stats.Skipped, "failed", stats.Failed, "locked", stats.Locked, "duration", stats.Duration)
		return nil
	}, JobOptions{Name: "sweep", Timeout: cfg.SweepTimeout, Overlap: SkipIfRunning})
	if err != nil {
		return err
	}

	if cfg.DigestSchedule == "" {
		return nil
	}
	_, err = s.Add(cfg.DigestSchedule, func(ctx context.Context) error {
		stats, err := o.SendWeeklyDigest(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("weekly digest finished",
			"candidates", stats.Candidates, "sent", stats.Sent, "skipped", stats.Skipped, "failed", stats.Failed)
		return nil
	}, JobOptions{Name: "weekly-digest", Timeout: cfg.DigestTimeout, Overlap: SkipIfRunning})
	return err
}
