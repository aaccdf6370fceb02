package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/telegram"
)

// ACL ограничивает бота списком Telegram user IDs. Пустой список пускает всех.
type ACL struct{ allowed map[int64]struct{} }

// NewACL создаёт ACL по списку ID
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed сообщает, имеет ли пользователь доступ
func (a *ACL) IsAllowed(id int64) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[id]
	return ok
}

// Middleware блокирует выполнение хендлера для неразрешённых пользователей
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, c telegram.Client, upd *models.Update) {
		uid, chat := sender(upd)
		if uid == 0 || a.IsAllowed(uid) {
			next(ctx, c, upd)
			return
		}
		if chat != 0 {
			_, _ = c.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: "This bot is private."})
		}
	}
}

// ParseAllowedIDs парсит список ID из строки (разделители: запятая/переносы)
func ParseAllowedIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\t' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram allowed ids: %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
