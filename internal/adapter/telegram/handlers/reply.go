package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
	"dailydev/internal/reply"
)

// Reply передаёт обычный текст в ядро. Ссылку на статью ядро отправляет само
// через отправителя канала.
func (h *Handlers) Reply(ctx context.Context, c telegram.Client, msg *models.Message) {
	advanced, err := h.svc.HandleInboundReply(ctx, telegram.Handle(msg.Chat.ID), msg.Text)
	if err != nil {
		h.log.Error("inbound reply", "chat_id", msg.Chat.ID, "err", err)
		h.send(ctx, c, msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	if !advanced && reply.IsAffirmative(msg.Text) {
		h.send(ctx, c, msg.Chat.ID, "Nothing is waiting for your reply right now. The next concept comes tomorrow.")
	}
}
