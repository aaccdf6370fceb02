package content

import (
	"errors"

	"dailydev/pkg/retry"
)

var (
	// ErrGenerationFailed провайдер не смог выдать ответ
	ErrGenerationFailed = errors.New("content: generation failed")
	// ErrInvalidResponse ответ получен, но не разбирается
	ErrInvalidResponse = errors.New("content: invalid response")
	// ErrContentBlocked провайдер отказался отвечать по соображениям безопасности
	ErrContentBlocked = errors.New("content: blocked by provider")
	// ErrNotConfigured не задан ключ или модель
	ErrNotConfigured = errors.New("content: generator not configured")
)

// IsTransient сообщает, имеет ли смысл повторить вызов.
// Битый ответ и блокировка не повторяются.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrNotConfigured) {
		return false
	}
	return retry.DefaultRetryable(err)
}
