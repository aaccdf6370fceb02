// Package messaging отправка текстов пользователю через внешний канал.
//
// Адрес пользователя (handle) имеет вид "канал:получатель", например
// "whatsapp:+15551234567" или "telegram:42". Адрес без префикса считается
// номером WhatsApp.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Каналы доставки.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

var (
	// ErrNotConfigured канал не настроен (нет ключей)
	ErrNotConfigured = errors.New("messaging: channel not configured")
	// ErrDeliveryFailed провайдер не принял сообщение
	ErrDeliveryFailed = errors.New("messaging: delivery failed")
	// ErrInvalidAddress адрес не разбирается
	ErrInvalidAddress = errors.New("messaging: invalid address")
)

// Sender доставляет текст по адресу и возвращает идентификатор сообщения у провайдера.
type Sender interface {
	SendMessage(ctx context.Context, handle, text string) (string, error)
}

// SenderFunc адаптер функции к Sender.
type SenderFunc func(ctx context.Context, handle, text string) (string, error)

// SendMessage implements Sender.
func (f SenderFunc) SendMessage(ctx context.Context, handle, text string) (string, error) {
	return f(ctx, handle, text)
}

// Address разобранный адрес.
type Address struct {
	Channel string
	Target  string
}

func (a Address) String() string { return a.Channel + ":" + a.Target }

// ParseAddress разбирает handle. Пустой получатель считается ошибкой.
func ParseAddress(handle string) (Address, error) {
	handle = strings.TrimSpace(handle)
	ch, target, found := strings.Cut(handle, ":")
	if !found {
		ch, target = ChannelWhatsApp, handle
	}
	ch = strings.ToLower(ch)
	target = strings.TrimSpace(target)
	if target == "" || ch == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, handle)
	}
	return Address{Channel: ch, Target: target}, nil
}

// NormalizeHandle приводит адрес к каноническому виду "канал:получатель".
func NormalizeHandle(handle string) (string, error) {
	a, err := ParseAddress(handle)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}
