package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"time"
)

// Config параметры повторов.
type Config struct {
	// MaxAttempts общее число попыток, включая первую
	MaxAttempts int
	// InitialDelay задержка перед второй попыткой
	InitialDelay time.Duration
	// MaxDelay верхняя граница задержки
	MaxDelay time.Duration
	// Multiplier множитель экспоненциального роста
	Multiplier float64
	// Jitter добавляет случайную составляющую [d/2, d)
	Jitter bool
	// OnRetry вызывается перед каждым ожиданием
	OnRetry func(attempt int, err error, wait time.Duration)

	// after подменяется в тестах
	after func(d time.Duration) <-chan time.Time
}

// DefaultConfig три попытки, 200мс → 5с, с джиттером.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c *Config) normalize() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.InitialDelay > c.MaxDelay {
		return errors.New("retry: InitialDelay cannot exceed MaxDelay")
	}
	if c.Multiplier < 1.0 {
		c.Multiplier = 2.0
	}
	if c.after == nil {
		c.after = time.After
	}
	return nil
}

// Func повторяемая операция.
type Func func(ctx context.Context) error

// RetryableFunc решает, стоит ли повторять после ошибки.
type RetryableFunc func(err error) bool

// ExhaustedError возвращается, когда попытки закончились.
type ExhaustedError struct {
	LastError error
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return e.LastError }

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent помечает ошибку как неповторяемую независимо от RetryableFunc.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка через Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// DefaultRetryable повторяет таймауты, обрывы соединения и ошибки с Temporary() == true.
// Отмена контекста не повторяется.
func DefaultRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	return false
}

// Do выполняет fn с повторами по DefaultRetryable.
func Do(ctx context.Context, cfg Config, fn Func) error {
	return DoWithRetryable(ctx, cfg, fn, DefaultRetryable)
}

// DoWithRetryable выполняет fn с повторами, решение о повторе принимает isRetryable.
// Ошибки, помеченные Permanent, возвращаются сразу без обёртки.
func DoWithRetryable(ctx context.Context, cfg Config, fn Func, isRetryable RetryableFunc) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return errors.Unwrap(lastErr)
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		wait := cfg.backoff(attempt)
		if deadline, ok := ctx.Deadline(); ok {
			if rem := time.Until(deadline); rem < wait {
				wait = rem
			}
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, wait)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-cfg.after(wait):
		}
	}

	return &ExhaustedError{LastError: lastErr, Attempts: cfg.MaxAttempts}
}

// backoff задержка после попытки attempt (нумерация с 1).
func (c Config) backoff(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			d = c.MaxDelay
			break
		}
	}
	if c.Jitter && d > 1 {
		half := d / 2
		d = half + time.Duration(rand.Int64N(int64(d-half)))
	}
	return d
}
