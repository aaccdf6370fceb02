// Package reply обработка входящих ответов пользователя.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/domain"
	"dailydev/internal/messaging"
	"dailydev/internal/platform/logger"
	"dailydev/internal/progress"
	"dailydev/internal/store"
)

// FollowUpMessage сообщение со ссылкой на статью.
func FollowUpMessage(frontendURL, concept string, artifactID uuid.UUID) string {
	return fmt.Sprintf("📚 Here's your deep dive on *%s*:\n\n%s/article/%s\n\nHappy learning! 🚀",
		concept, strings.TrimRight(frontendURL, "/"), artifactID)
}

// Processor переводит отправленный концепт в прочитанный по ответу пользователя.
type Processor struct {
	store       store.Store
	artifacts   *Artifacts
	sender      messaging.Sender
	log         *slog.Logger
	policy      domain.HourPolicy
	frontendURL string
	callTimeout time.Duration
	now         func() time.Time
}

// Config параметры Processor.
type Config struct {
	Policy      domain.HourPolicy
	FrontendURL string
	CallTimeout time.Duration
}

// Option настраивает Processor.
type Option func(*Processor)

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

// NewProcessor создаёт Processor.
func NewProcessor(s store.Store, artifacts *Artifacts, sender messaging.Sender, log *slog.Logger, cfg Config, opts ...Option) *Processor {
	if cfg.Policy == "" {
		cfg.Policy = domain.HourPolicyLocal
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	p := &Processor{
		store:       s,
		artifacts:   artifacts,
		sender:      sender,
		log:         log.With("component", "reply"),
		policy:      cfg.Policy,
		frontendURL: cfg.FrontendURL,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle обрабатывает входящее сообщение. true только если элемент
// перешёл в read. Неутвердительный ответ, неизвестный адрес или отсутствие
// отправленного элемента дают false без ошибки; ошибки хранилища
// возвращаются вызывающему.
func (p *Processor) Handle(ctx context.Context, handle, text string) (bool, error) {
	if !IsAffirmative(text) {
		return false, nil
	}
	normalized, err := messaging.NormalizeHandle(handle)
	if err != nil {
		p.log.Debug("reply from unparseable address", "handle", logger.MaskHandle(handle), "err", err)
		return false, nil
	}
	log := p.log.With("handle", logger.MaskHandle(normalized))

	user, err := p.store.GetUserByHandle(ctx, normalized)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("reply from unknown handle")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	item, err := p.store.LatestSentItem(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("nothing awaiting a reply", "user_id", user.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	art, err := p.artifacts.Ensure(ctx, item)
	if err != nil {
		return false, err
	}
	advanced, err := p.Complete(ctx, user, item)
	if err != nil || !advanced {
		return false, err
	}

	sctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	if _, err := p.sender.SendMessage(sctx, user.Handle, FollowUpMessage(p.frontendURL, item.ConceptTitle, art.ID)); err != nil {
		log.Warn("follow-up not delivered", "item_id", item.ID, "err", err)
	}
	return true, nil
}

// Complete переводит sent→read и обновляет прогресс в одной транзакции.
// false без ошибки, если элемент уже не в статусе sent.
func (p *Processor) Complete(ctx context.Context, user domain.User, item domain.ScheduleItem) (bool, error) {
	now := p.now()
	today := p.policy.Today(user, now)

	var awarded []string
	err := p.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := p.store.MarkRead(ctx, item.ID, now); err != nil {
			return err
		}
		rec, err := p.store.GetProgress(ctx, user.ID, item.TopicID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rec = domain.ProgressRecord{UserID: user.ID, TopicID: item.TopicID}
		case err != nil:
			return err
		}
		rec, awarded = progress.Apply(rec, today)
		return p.store.UpsertProgress(ctx, rec)
	})
	if errors.Is(err, store.ErrStale) {
		p.log.Info("item already completed", "item_id", item.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.log.Info("concept completed", "user_id", user.ID, "item_id", item.ID, "day", item.DayNumber)
	if len(awarded) > 0 {
		p.log.Info("badges awarded", "user_id", user.ID, "badges", awarded)
	}
	return true, nil
}
