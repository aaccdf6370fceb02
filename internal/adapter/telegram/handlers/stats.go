package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
	"dailydev/internal/progress"
	"dailydev/internal/shared"
)

// Stats handles /stats.
func (h *Handlers) Stats(ctx context.Context, c telegram.Client, msg *models.Message) {
	u, err := h.svc.UserByHandle(ctx, telegram.Handle(msg.Chat.ID))
	if shared.IsNotFound(err) {
		h.send(ctx, c, msg.Chat.ID, "I don't know this chat yet. Send /start to get your handle.")
		return
	}
	var sum progress.Summary
	if err == nil {
		sum, err = h.svc.UserStats(ctx, u.ID)
	}
	if err != nil {
		h.log.Error("stats", "chat_id", msg.Chat.ID, "err", err)
		h.send(ctx, c, msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	h.send(ctx, c, msg.Chat.ID, FormatSummary(sum))
}

// FormatSummary текст сводки прогресса.
func FormatSummary(s progress.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 Current streak: %d days\n", s.CurrentStreak)
	fmt.Fprintf(&b, "🏆 Longest streak: %d days\n", s.LongestStreak)
	fmt.Fprintf(&b, "📖 Concepts learned: %d", s.ConceptsLearned)
	if len(s.Badges) > 0 {
		fmt.Fprintf(&b, "\n🏅 Badges: %s", strings.Join(s.Badges, ", "))
	}
	return b.String()
}
