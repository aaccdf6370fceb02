package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChannelStatus состояние подключения канала доставки.
type ChannelStatus string

const (
	ChannelPending      ChannelStatus = "pending"
	ChannelConnected    ChannelStatus = "connected"
	ChannelDisconnected ChannelStatus = "disconnected"
)

// Значения по умолчанию для нового пользователя.
const (
	DefaultPreferredHour   = 9
	DefaultTimezone        = "UTC"
	DefaultExperienceLevel = "intermediate"
)

// User граничная запись пользователя.
type User struct {
	ID              uuid.UUID
	Handle          string
	ChannelStatus   ChannelStatus
	PreferredHour   int
	Timezone        string
	ExperienceLevel string
	// SkillSummary сериализованный JSON навыков, может отсутствовать
	SkillSummary *string
	CreatedAt    time.Time
}

// Reachable true, если пользователю можно писать.
func (u User) Reachable() bool {
	return u.ChannelStatus == ChannelConnected && u.Handle != ""
}

// Location возвращает часовой пояс пользователя; при ошибке UTC и false.
func (u User) Location() (*time.Location, bool) {
	if u.Timezone == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// Topic граничная запись темы.
type Topic struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
}

// EnrollmentActive единственный статус записи, который создаёт ядро.
const EnrollmentActive = "active"

// Допустимые длительности программы в днях.
var AllowedDurations = []int{30, 60, 90}

// DurationAllowed проверяет длительность по AllowedDurations.
func DurationAllowed(days int) bool {
	for _, d := range AllowedDurations {
		if d == days {
			return true
		}
	}
	return false
}

// Enrollment запись пользователя на тему.
type Enrollment struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TopicID      uuid.UUID
	DurationDays int
	StartDate    time.Time
	TargetDate   time.Time
	Status       string
	CreatedAt    time.Time
}
