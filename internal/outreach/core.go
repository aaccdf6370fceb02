// Package outreach точка входа ядра: все операции, которые вызывают
// HTTP-обработчики, бот и планировщик.
package outreach

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/content"
	"dailydev/internal/digest"
	"dailydev/internal/dispatch"
	"dailydev/internal/domain"
	"dailydev/internal/messaging"
	"dailydev/internal/planner"
	"dailydev/internal/progress"
	"dailydev/internal/reply"
	"dailydev/internal/shared"
	"dailydev/internal/store"
)

// Deps внешние зависимости ядра.
type Deps struct {
	Store     store.Store
	Generator content.Generator
	Sender    messaging.Sender
	// Locker межпроцессная блокировка обхода; nil означает без блокировки
	Locker dispatch.Locker
	Logger *slog.Logger
	// Clock nil означает time.Now
	Clock func() time.Time
}

// Config параметры ядра.
type Config struct {
	Policy         domain.HourPolicy
	FrontendURL    string
	Sweep          dispatch.Config
	RoadmapTimeout time.Duration
	ArticleTimeout time.Duration
	CallTimeout    time.Duration
}

// Core фасад операций.
type Core struct {
	store     store.Store
	log       *slog.Logger
	planner   *planner.Planner
	sweeper   *dispatch.Sweeper
	artifacts *reply.Artifacts
	replies   *reply.Processor
	digest    *digest.Sender
}

// New собирает ядро.
func New(d Deps, cfg Config) *Core {
	if cfg.Policy == "" {
		cfg.Policy = domain.HourPolicyLocal
	}
	cfg.Sweep.Policy = cfg.Policy
	if cfg.Sweep.CallTimeout == 0 {
		cfg.Sweep.CallTimeout = cfg.CallTimeout
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	arts := reply.NewArtifacts(d.Store, d.Generator, d.Logger, cfg.ArticleTimeout)
	return &Core{
		store: d.Store,
		log:   d.Logger,
		planner: planner.New(d.Store, d.Generator, d.Logger,
			planner.WithClock(clock),
			planner.WithHourPolicy(cfg.Policy),
			planner.WithGenerationTimeout(cfg.RoadmapTimeout)),
		sweeper: dispatch.New(d.Store, d.Generator, d.Sender, d.Logger, cfg.Sweep,
			dispatch.WithClock(clock),
			dispatch.WithLocker(d.Locker)),
		artifacts: arts,
		replies: reply.NewProcessor(d.Store, arts, d.Sender, d.Logger,
			reply.Config{Policy: cfg.Policy, FrontendURL: cfg.FrontendURL, CallTimeout: cfg.CallTimeout},
			reply.WithClock(clock)),
		digest: digest.New(d.Store, d.Sender, d.Logger, cfg.CallTimeout),
	}
}

// EnrollUser записывает пользователя на тему и строит план.
func (c *Core) EnrollUser(ctx context.Context, userID, topicID uuid.UUID, durationDays int) (domain.Enrollment, error) {
	return c.planner.Enroll(ctx, userID, topicID, durationDays)
}

// GetNextDue самый ранний pending или sent элемент темы.
func (c *Core) GetNextDue(ctx context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error) {
	return c.store.NextDueItem(ctx, userID, topicID)
}

// HandleInboundReply ответ пользователя из любого канала.
func (c *Core) HandleInboundReply(ctx context.Context, handle, text string) (bool, error) {
	return c.replies.Handle(ctx, handle, text)
}

// RunSweepOnce один обход рассылки.
func (c *Core) RunSweepOnce(ctx context.Context) (dispatch.SweepStats, error) {
	return c.sweeper.RunOnce(ctx)
}

// GenerateArtifact статья по запросу; существующая возвращается как есть.
func (c *Core) GenerateArtifact(ctx context.Context, itemID uuid.UUID) (domain.Artifact, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return domain.Artifact{}, err
	}
	return c.artifacts.Ensure(ctx, item)
}

// ViewArtifact увеличивает счётчик просмотров. Если смотрит владелец и
// элемент ещё в статусе sent, просмотр засчитывается как ответ (без
// повторной ссылки). viewerID uuid.Nil означает анонимный просмотр.
func (c *Core) ViewArtifact(ctx context.Context, artifactID, viewerID uuid.UUID) (domain.Artifact, error) {
	art, err := c.store.IncrementArtifactViews(ctx, artifactID)
	if err != nil {
		return domain.Artifact{}, err
	}
	if viewerID == uuid.Nil {
		return art, nil
	}
	item, err := c.store.GetItem(ctx, art.ScheduleItemID)
	if err != nil {
		return domain.Artifact{}, err
	}
	if item.UserID != viewerID || item.Status != domain.StatusSent {
		return art, nil
	}
	user, err := c.store.GetUser(ctx, viewerID)
	if err != nil {
		return domain.Artifact{}, err
	}
	if _, err := c.replies.Complete(ctx, user, item); err != nil {
		return domain.Artifact{}, err
	}
	return art, nil
}

// ErrNotSkippable элемент уже не pending.
var ErrNotSkippable = shared.MarkKind(errors.New("outreach: only pending items can be skipped"), shared.KindConflict)

// SkipItem переводит pending→skipped.
func (c *Core) SkipItem(ctx context.Context, itemID uuid.UUID) error {
	err := c.store.MarkSkipped(ctx, itemID)
	if errors.Is(err, store.ErrStale) {
		return ErrNotSkippable
	}
	return err
}

// Overview программа пользователя по теме.
type Overview struct {
	Enrollment domain.Enrollment     `json:"enrollment"`
	Topic      domain.Topic          `json:"topic"`
	Items      []domain.ScheduleItem `json:"items"`
	Completed  int                   `json:"completed"`
	// CurrentDay день первого pending или sent элемента; 0, если таких нет
	CurrentDay int `json:"current_day"`
	Total      int `json:"total"`
}

// RoadmapOverview план, число прочитанных и текущий день.
func (c *Core) RoadmapOverview(ctx context.Context, userID, topicID uuid.UUID) (Overview, error) {
	e, err := c.store.GetEnrollment(ctx, userID, topicID)
	if err != nil {
		return Overview{}, err
	}
	topic, err := c.store.GetTopic(ctx, topicID)
	if err != nil {
		return Overview{}, err
	}
	items, err := c.store.ListItems(ctx, userID, topicID)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{Enrollment: e, Topic: topic, Items: items, Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case domain.StatusRead:
			ov.Completed++
		case domain.StatusPending, domain.StatusSent:
			if ov.CurrentDay == 0 {
				ov.CurrentDay = it.DayNumber
			}
		}
	}
	return ov, nil
}

// UserStats сводка прогресса по всем темам.
func (c *Core) UserStats(ctx context.Context, userID uuid.UUID) (progress.Summary, error) {
	if _, err := c.store.GetUser(ctx, userID); err != nil {
		return progress.Summary{}, err
	}
	records, err := c.store.ListProgress(ctx, userID)
	if err != nil {
		return progress.Summary{}, err
	}
	return progress.Aggregate(records), nil
}

// UserByHandle пользователь по адресу канала; адрес приводится к каноническому виду.
func (c *Core) UserByHandle(ctx context.Context, handle string) (domain.User, error) {
	h, err := messaging.NormalizeHandle(handle)
	if err != nil {
		return domain.User{}, shared.MarkKind(err, shared.KindValidation)
	}
	return c.store.GetUserByHandle(ctx, h)
}

// SendWeeklyDigest рассылает недельные сводки.
func (c *Core) SendWeeklyDigest(ctx context.Context) (digest.Stats, error) {
	return c.digest.SendAll(ctx)
}

// Ready проверка хранилища для /healthz.
func (c *Core) Ready(ctx context.Context) error {
	return c.store.Ping(ctx)
}
