// Package middleware обёртки над telegram.HandlerFunc: ограничение частоты
// и список разрешённых пользователей.
package middleware

import (
	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
)

// Middleware wraps telegram.HandlerFunc.
type Middleware func(telegram.HandlerFunc) telegram.HandlerFunc

// Chain applies middlewares in order.
func Chain(h telegram.HandlerFunc, mws ...Middleware) telegram.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// sender возвращает id пользователя и чата; нули, если update без отправителя.
func sender(upd *models.Update) (uid, chat int64) {
	if msg := upd.Message; msg != nil {
		chat = msg.Chat.ID
		if msg.From != nil {
			uid = msg.From.ID
		}
		return uid, chat
	}
	if cq := upd.CallbackQuery; cq != nil {
		uid = cq.From.ID
		if cq.Message.Message != nil {
			chat = cq.Message.Message.Chat.ID
		}
	}
	return uid, chat
}
