package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status состояние элемента расписания.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusRead    Status = "read"
	StatusSkipped Status = "skipped"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusRead, StatusSkipped:
		return true
	}
	return false
}

// Terminal true для read и skipped.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusSkipped
}

// CanTransition разрешает только pending→sent, sent→read и pending→skipped.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusSent || to == StatusSkipped
	case StatusSent:
		return to == StatusRead
	default:
		return false
	}
}

// Difficulty сложность концепта.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty принимает значение без учёта регистра.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(lower(s)); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// ScheduleItem один концепт одного дня в программе пользователя.
type ScheduleItem struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TopicID         uuid.UUID
	DayNumber       int
	ConceptTitle    string
	ConceptSlug     string
	Difficulty      Difficulty
	ReadTimeMinutes int
	// ScheduledDate календарная дата, полночь UTC
	ScheduledDate time.Time
	Hook          *string
	SentAt        *time.Time
	RespondedAt   *time.Time
	Status        Status
	// DeliveryID идентификатор сообщения у провайдера после успешной отправки
	DeliveryID *string
	CreatedAt  time.Time
}

// HookText возвращает сохранённый хук или пустую строку.
func (it ScheduleItem) HookText() string {
	if it.Hook == nil {
		return ""
	}
	return *it.Hook
}

// SentOn сообщает, был ли элемент отправлен в календарный день day в локации loc.
func (it ScheduleItem) SentOn(day time.Time, loc *time.Location) bool {
	if it.SentAt == nil {
		return false
	}
	return CivilDate(it.SentAt.In(loc)).Equal(CivilDate(day.In(loc)))
}
