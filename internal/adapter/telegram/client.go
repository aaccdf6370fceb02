// Package telegram канал доставки Telegram: отправка сообщений и приём
// ответов пользователей через go-telegram/bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailydev/internal/messaging"
	"dailydev/internal/platform/logger"
)

// Client часть *bot.Bot, нужная адаптеру.
type Client interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

var _ Client = (*bot.Bot)(nil)

// Handle адрес пользователя для чата.
func Handle(chatID int64) string {
	return messaging.ChannelTelegram + ":" + strconv.FormatInt(chatID, 10)
}

// ChatID разбирает адрес вида "telegram:<chat id>".
func ChatID(handle string) (int64, error) {
	addr, err := messaging.ParseAddress(handle)
	if err != nil {
		return 0, err
	}
	if addr.Channel != messaging.ChannelTelegram {
		return 0, fmt.Errorf("%w: not a telegram handle %q", messaging.ErrInvalidAddress, handle)
	}
	id, err := strconv.ParseInt(addr.Target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chat id %q", messaging.ErrInvalidAddress, addr.Target)
	}
	return id, nil
}

// Sender реализует messaging.Sender для канала telegram.
type Sender struct {
	client Client
	log    *slog.Logger
}

var _ messaging.Sender = (*Sender)(nil)

func NewSender(c Client, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{client: c, log: log}
}

// SendMessage отправляет текст без разметки и возвращает id сообщения.
func (s *Sender) SendMessage(ctx context.Context, handle, text string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: telegram bot token missing", messaging.ErrNotConfigured)
	}
	chatID, err := ChatID(handle)
	if err != nil {
		return "", err
	}
	msg, err := s.client.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return "", fmt.Errorf("%w: %w", messaging.ErrDeliveryFailed, err)
	}
	s.log.Debug("telegram message sent", "handle", logger.MaskHandle(handle), "message_id", msg.ID)
	return strconv.Itoa(msg.ID), nil
}
