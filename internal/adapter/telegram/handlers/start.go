package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
	"dailydev/internal/domain"
	"dailydev/internal/shared"
)

// Start handles /start: сообщает адрес чата, который нужно указать в профиле.
func (h *Handlers) Start(ctx context.Context, c telegram.Client, msg *models.Message) {
	handle := telegram.Handle(msg.Chat.ID)
	u, err := h.svc.UserByHandle(ctx, handle)
	switch {
	case err == nil && u.ChannelStatus == domain.ChannelConnected:
		h.send(ctx, c, msg.Chat.ID, fmt.Sprintf(
			"✅ You're connected. Your next concept arrives at %02d:00 (%s).", u.PreferredHour, u.Timezone))
	case err == nil || shared.IsNotFound(err):
		h.send(ctx, c, msg.Chat.ID, fmt.Sprintf(
			"👋 Welcome to DailyDev!\n\nYour handle is %s\nAdd it to your profile to get one concept a day.", handle))
	default:
		h.log.Error("start: lookup user", "chat_id", msg.Chat.ID, "err", err)
		h.send(ctx, c, msg.Chat.ID, "Something went wrong, try again later.")
	}
}
