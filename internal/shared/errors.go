package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Базовые ошибки, общие для всех слоёв.
var (
	// ErrNotFound запрошенная сущность не найдена
	ErrNotFound = errors.New("not found")

	// ErrValidation входные данные не прошли проверку
	ErrValidation = errors.New("validation failed")

	// ErrConflict запрос конфликтует с текущим состоянием
	ErrConflict = errors.New("conflict")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")

	// ErrTimeout операция не уложилась во время
	ErrTimeout = errors.New("operation timed out")

	// ErrInvariantViolated нарушено бизнес-правило
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrDependencyFailure отказ внешней зависимости
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind категория ошибки.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindInternal
	KindTimeout
	KindInvariantViolated
	KindDependencyFailure
	KindCanceled
)

// String возвращает имя категории.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindConflict:
		return "Conflict"
	case KindInternal:
		return "Internal"
	case KindTimeout:
		return "Timeout"
	case KindInvariantViolated:
		return "InvariantViolated"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindValidation:        ErrValidation,
	KindConflict:          ErrConflict,
	KindInternal:          ErrInternal,
	KindTimeout:           ErrTimeout,
	KindInvariantViolated: ErrInvariantViolated,
	KindDependencyFailure: ErrDependencyFailure,
}

// kindPriorities порядок проверки в KindOf: первая совпавшая категория побеждает.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindConflict, ErrConflict},
	{KindInvariantViolated, ErrInvariantViolated},
	{KindDependencyFailure, ErrDependencyFailure},
	{KindInternal, ErrInternal},
}

// KindOf классифицирует ошибку, обходя всю цепочку обёрток.
// Для errors.Join возвращается первая категория в порядке приоритета.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, p := range kindPriorities {
		switch p.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, p.err) {
				return p.kind
			}
		}
	}
	return KindUnknown
}

// HasKind эквивалентно KindOf(err) == kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SentinelOf возвращает базовую ошибку категории или nil для KindUnknown и KindCanceled.
func SentinelOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind оборачивает err базовой ошибкой категории kind.
// И errors.Is(res, err), и KindOf(res) == kind остаются истинными.
// Повторная пометка той же категорией возвращает err без изменений.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return SentinelOf(kind)
	}
	sentinel := SentinelOf(kind)
	if sentinel == nil {
		return err
	}
	if HasKind(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap добавляет контекст к ошибке: "context: err". Для nil возвращает nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf как Wrap, но с форматированием.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Invariant возвращает ErrInvariantViolated с сообщением, если условие ложно.
func Invariant(condition bool, message string) error {
	if condition {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvariantViolated, message)
}

// Validationf создаёт ошибку валидации с форматированным сообщением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsCanceled сообщает, отменён ли контекст.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout учитывает context.DeadlineExceeded, ErrTimeout и сетевые таймауты.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool          { return errors.Is(err, ErrConflict) }
func IsInvariantViolated(err error) bool { return errors.Is(err, ErrInvariantViolated) }
func IsDependencyFailure(err error) bool { return errors.Is(err, ErrDependencyFailure) }
