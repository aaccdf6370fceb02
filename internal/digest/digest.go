// Package digest еженедельная сводка прогресса.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dailydev/internal/domain"
	"dailydev/internal/messaging"
	"dailydev/internal/platform/logger"
	"dailydev/internal/progress"
	"dailydev/internal/shared"
	"dailydev/internal/store"
)

// RoadmapComplete подставляется вместо следующего концепта, когда ждать нечего.
const RoadmapComplete = "Roadmap complete 🎉"

// Message текст сводки.
func Message(streak, conceptsLearned int, next string) string {
	return fmt.Sprintf("📊 *Your Weekly Progress*\n\n🔥 Current Streak: %d days\n📖 Concepts Learned: %d\n\nNext up: *%s*\n\nKeep up the amazing work! 💪",
		streak, conceptsLearned, next)
}

// Stats итог рассылки.
type Stats struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Sender рассылает сводки. Доставка best-effort: ошибка одного
// пользователя не останавливает остальных.
type Sender struct {
	store       store.Store
	sender      messaging.Sender
	log         *slog.Logger
	callTimeout time.Duration
}

// New callTimeout 0 означает 30 секунд.
func New(s store.Store, sender messaging.Sender, log *slog.Logger, callTimeout time.Duration) *Sender {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Sender{store: s, sender: sender, log: log.With("component", "digest"), callTimeout: callTimeout}
}

// SendAll отправляет сводку каждому доступному пользователю, у которого есть прогресс.
func (d *Sender) SendAll(ctx context.Context) (Stats, error) {
	var st Stats
	users, err := d.store.ListReachableUsers(ctx)
	if err != nil {
		return st, shared.Wrap(err, "list reachable users")
	}
	st.Candidates = len(users)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		ok, err := d.sendOne(ctx, u)
		switch {
		case err != nil:
			st.Failed++
			d.log.Warn("digest not delivered", "user_id", u.ID, "handle", logger.MaskHandle(u.Handle), "err", err)
		case ok:
			st.Sent++
		default:
			st.Skipped++
		}
	}
	d.log.Info("weekly digest finished", "candidates", st.Candidates, "sent", st.Sent, "skipped", st.Skipped, "failed", st.Failed)
	return st, nil
}

func (d *Sender) sendOne(ctx context.Context, u domain.User) (bool, error) {
	records, err := d.store.ListProgress(ctx, u.ID)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	sum := progress.Aggregate(records)

	next := RoadmapComplete
	item, err := d.store.NextPendingItem(ctx, u.ID)
	switch {
	case err == nil:
		next = item.ConceptTitle
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	sctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	if _, err := d.sender.SendMessage(sctx, u.Handle, Message(sum.CurrentStreak, sum.ConceptsLearned, next)); err != nil {
		return false, err
	}
	return true, nil
}
