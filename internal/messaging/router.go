package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"dailydev/internal/platform/logger"
)

// Router выбирает Sender по каналу адреса.
type Router struct {
	senders map[string]Sender
	log     *slog.Logger
}

// NewRouter создаёт пустой маршрутизатор.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{senders: make(map[string]Sender), log: log}
}

// Register привязывает канал к отправителю. nil отключает канал.
func (r *Router) Register(channel string, s Sender) {
	if s == nil {
		delete(r.senders, channel)
		return
	}
	r.senders[channel] = s
}

// Channels список подключённых каналов.
func (r *Router) Channels() []string {
	out := make([]string, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}

// SendMessage implements Sender. Отправителю передаётся полный адрес.
func (r *Router) SendMessage(ctx context.Context, handle, text string) (string, error) {
	addr, err := ParseAddress(handle)
	if err != nil {
		return "", err
	}
	s, ok := r.senders[addr.Channel]
	if !ok {
		r.log.Warn("no sender for channel", "channel", addr.Channel, "handle", logger.MaskHandle(handle))
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, addr.Channel)
	}
	return s.SendMessage(ctx, addr.String(), text)
}
