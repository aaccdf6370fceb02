package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Значки за серии.
const (
	Badge7DayStreak  = "7-day-streak"
	Badge30DayStreak = "30-day-streak"
)

// BadgeSet множество значков.
type BadgeSet map[string]struct{}

// NewBadgeSet строит множество из списка, дубликаты схлопываются.
func NewBadgeSet(badges ...string) BadgeSet {
	s := make(BadgeSet, len(badges))
	for _, b := range badges {
		s.Add(b)
	}
	return s
}

// Add добавляет значок; возвращает true, если его ещё не было.
func (s BadgeSet) Add(b string) bool {
	if _, ok := s[b]; ok {
		return false
	}
	s[b] = struct{}{}
	return true
}

// Has проверяет наличие значка.
func (s BadgeSet) Has(b string) bool {
	_, ok := s[b]
	return ok
}

// Sorted отсортированный список для хранения и вывода.
func (s BadgeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for b := range s {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// Clone копия множества.
func (s BadgeSet) Clone() BadgeSet {
	c := make(BadgeSet, len(s))
	for b := range s {
		c[b] = struct{}{}
	}
	return c
}

// ProgressRecord сводка по паре пользователь+тема.
type ProgressRecord struct {
	UserID        uuid.UUID
	TopicID       uuid.UUID
	CurrentStreak int
	LongestStreak int
	// LastActivityDate календарная дата, полночь UTC
	LastActivityDate *time.Time
	ConceptsLearned  int
	ArticlesRead     int
	Badges           BadgeSet
	UpdatedAt        time.Time
}
