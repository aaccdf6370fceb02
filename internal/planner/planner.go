// Package planner записывает пользователя на тему и строит план на N дней.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/content"
	"dailydev/internal/domain"
	"dailydev/internal/shared"
	"dailydev/internal/store"
)

// ErrAlreadyEnrolled повторная запись на ту же тему.
var ErrAlreadyEnrolled = shared.MarkKind(errors.New("planner: already enrolled"), shared.KindConflict)

const (
	defaultReadTime   = 10
	defaultGenTimeout = 60 * time.Second
)

// Planner строит программу обучения.
type Planner struct {
	store      store.Store
	gen        content.Generator
	log        *slog.Logger
	policy     domain.HourPolicy
	now        func() time.Time
	genTimeout time.Duration
}

// Option настраивает Planner.
type Option func(*Planner)

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithHourPolicy задаёт, в какой локации считается дата старта.
func WithHourPolicy(policy domain.HourPolicy) Option {
	return func(p *Planner) { p.policy = policy }
}

// WithGenerationTimeout ограничивает вызов генератора плана.
func WithGenerationTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.genTimeout = d
		}
	}
}

// New создаёт Planner. gen может быть nil: тогда всегда используется встроенный план.
func New(s store.Store, gen content.Generator, log *slog.Logger, opts ...Option) *Planner {
	p := &Planner{
		store:      s,
		gen:        gen,
		log:        log,
		policy:     domain.HourPolicyLocal,
		now:        time.Now,
		genTimeout: defaultGenTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enroll проверяет входные данные, получает план от генератора (или
// встроенный) и в одной транзакции сохраняет запись, пустой прогресс и
// все элементы расписания.
func (p *Planner) Enroll(ctx context.Context, userID, topicID uuid.UUID, durationDays int) (domain.Enrollment, error) {
	if !domain.DurationAllowed(durationDays) {
		return domain.Enrollment{}, shared.Validationf("duration must be one of %v, got %d", domain.AllowedDurations, durationDays)
	}
	topic, err := p.store.GetTopic(ctx, topicID)
	if err != nil {
		if shared.IsNotFound(err) {
			return domain.Enrollment{}, shared.Validationf("unknown topic %s", topicID)
		}
		return domain.Enrollment{}, err
	}
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return domain.Enrollment{}, shared.Wrap(err, "load user")
	}
	if _, err := p.store.GetEnrollment(ctx, userID, topicID); err == nil {
		return domain.Enrollment{}, ErrAlreadyEnrolled
	} else if !shared.IsNotFound(err) {
		return domain.Enrollment{}, err
	}

	log := p.log.With("user_id", userID, "topic", topic.Name, "days", durationDays)
	entries := p.roadmap(ctx, log, topic.Name, durationDays, user.ExperienceLevel)

	now := p.now()
	start := p.policy.Today(user, now)
	enrollment := domain.Enrollment{
		ID:           uuid.New(),
		UserID:       userID,
		TopicID:      topicID,
		DurationDays: durationDays,
		StartDate:    start,
		TargetDate:   domain.AddDays(start, durationDays),
		Status:       domain.EnrollmentActive,
		CreatedAt:    now,
	}
	items := BuildItems(userID, topicID, start, now, entries)

	err = p.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := p.store.CreateEnrollment(ctx, enrollment); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyEnrolled
			}
			return err
		}
		if _, err := p.store.GetProgress(ctx, userID, topicID); shared.IsNotFound(err) {
			if err := p.store.UpsertProgress(ctx, domain.ProgressRecord{UserID: userID, TopicID: topicID}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return p.store.CreateItems(ctx, items)
	})
	if err != nil {
		return domain.Enrollment{}, err
	}

	log.Info("user enrolled", "enrollment_id", enrollment.ID, "start", start.Format(time.DateOnly))
	return enrollment, nil
}

func (p *Planner) roadmap(ctx context.Context, log *slog.Logger, topic string, n int, level string) []content.RoadmapEntry {
	if p.gen == nil {
		return content.DefaultRoadmap(topic, n)
	}
	gctx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()

	entries, err := p.gen.GenerateRoadmap(gctx, topic, n, level)
	if err != nil {
		log.Warn("roadmap generation failed, using built-in plan", "err", err)
		return content.DefaultRoadmap(topic, n)
	}
	normalized, ok := Normalize(entries, n)
	if !ok {
		log.Warn("roadmap rejected, using built-in plan", "got", len(entries))
		return content.DefaultRoadmap(topic, n)
	}
	return normalized
}

// Normalize принимает ответ генератора, если в нём не меньше n записей и у
// первых n непустые концепты. Лишнее отрезается, дни перенумеровываются,
// неизвестная сложность заменяется полосой по позиции, неположительное
// время чтения заменяется на 10 минут.
func Normalize(entries []content.RoadmapEntry, n int) ([]content.RoadmapEntry, bool) {
	if len(entries) < n {
		return nil, false
	}
	out := make([]content.RoadmapEntry, n)
	for i := range out {
		e := entries[i]
		e.Concept = strings.TrimSpace(e.Concept)
		if e.Concept == "" {
			return nil, false
		}
		e.Day = i + 1
		if d, ok := domain.ParseDifficulty(e.Difficulty); ok {
			e.Difficulty = string(d)
		} else {
			e.Difficulty = content.BandDifficulty(i, n)
		}
		if e.ReadTime <= 0 {
			e.ReadTime = defaultReadTime
		}
		out[i] = e
	}
	return out, true
}

// BuildItems элементы расписания: день k приходится на start + (k-1).
func BuildItems(userID, topicID uuid.UUID, start, createdAt time.Time, entries []content.RoadmapEntry) []domain.ScheduleItem {
	items := make([]domain.ScheduleItem, len(entries))
	for i, e := range entries {
		diff, ok := domain.ParseDifficulty(e.Difficulty)
		if !ok {
			diff = domain.Difficulty(content.BandDifficulty(i, len(entries)))
		}
		items[i] = domain.ScheduleItem{
			ID:              uuid.New(),
			UserID:          userID,
			TopicID:         topicID,
			DayNumber:       e.Day,
			ConceptTitle:    e.Concept,
			ConceptSlug:     domain.Slugify(e.Concept),
			Difficulty:      diff,
			ReadTimeMinutes: e.ReadTime,
			ScheduledDate:   domain.AddDays(start, e.Day-1),
			Status:          domain.StatusPending,
			CreatedAt:       createdAt,
		}
	}
	return items
}
