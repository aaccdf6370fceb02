// Package handlers команды и текстовые ответы бота.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"dailydev/internal/adapter/telegram"
	"dailydev/internal/domain"
	"dailydev/internal/progress"
)

// Service операции ядра, которые нужны боту.
type Service interface {
	HandleInboundReply(ctx context.Context, handle, text string) (bool, error)
	UserByHandle(ctx context.Context, handle string) (domain.User, error)
	UserStats(ctx context.Context, userID uuid.UUID) (progress.Summary, error)
}

// Handlers маршрутизирует updates.
type Handlers struct {
	svc Service
	log *slog.Logger
}

func New(svc Service, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{svc: svc, log: log}
}

// Handle implements telegram.HandlerFunc.
func (h *Handlers) Handle(ctx context.Context, c telegram.Client, upd *models.Update) {
	msg := upd.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if !strings.HasPrefix(msg.Text, "/") {
		h.Reply(ctx, c, msg)
		return
	}
	cmd := strings.TrimPrefix(strings.SplitN(msg.Text, " ", 2)[0], "/")
	// "/stats@dailydev_bot" в группах
	cmd, _, _ = strings.Cut(cmd, "@")
	switch cmd {
	case "start":
		h.Start(ctx, c, msg)
	case "stats":
		h.Stats(ctx, c, msg)
	case "ping":
		Ping(ctx, c, msg)
	case "help":
		h.send(ctx, c, msg.Chat.ID, helpText)
	}
}

const helpText = `/start your handle and how to connect
/stats streaks and concepts learned
Reply YES to a daily message to get the deep dive.`

func (h *Handlers) send(ctx context.Context, c telegram.Client, chatID int64, text string) {
	if _, err := c.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.log.Warn("telegram reply failed", "chat_id", chatID, "err", err)
	}
}
