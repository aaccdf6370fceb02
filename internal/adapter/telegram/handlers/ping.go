package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
)

// Ping handles /ping command.
func Ping(ctx context.Context, c telegram.Client, msg *models.Message) {
	_, err := c.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   "pong",
	})
	if err != nil {
		slog.Warn("send ping", "err", err)
	}
}
