// Package progress серии, счётчики и значки пользователя по темам.
package progress

import (
	"time"

	"dailydev/internal/domain"
)

// Пороги значков за серию.
const (
	weekStreak  = 7
	monthStreak = 30
)

// Apply засчитывает прочитанный концепт в день today (календарная дата).
//
// Серия: первая активность даёт 1; активность на следующий день после
// последней продлевает серию; пропуск больше одного дня сбрасывает её в 1;
// повтор в тот же день серию не меняет. Счётчики концептов и статей растут
// при каждом вызове. Возвращает обновлённую запись и значки, выданные впервые.
func Apply(rec domain.ProgressRecord, today time.Time) (domain.ProgressRecord, []string) {
	today = domain.CivilDate(today)

	switch {
	case rec.LastActivityDate == nil:
		rec.CurrentStreak = 1
	default:
		switch gap := domain.DaysBetween(*rec.LastActivityDate, today); {
		case gap == 1:
			rec.CurrentStreak++
		case gap > 1:
			rec.CurrentStreak = 1
		}
	}
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.LastActivityDate = &today
	rec.ConceptsLearned++
	rec.ArticlesRead++

	if rec.Badges == nil {
		rec.Badges = domain.NewBadgeSet()
	} else {
		rec.Badges = rec.Badges.Clone()
	}
	var awarded []string
	if rec.CurrentStreak >= weekStreak && rec.Badges.Add(domain.Badge7DayStreak) {
		awarded = append(awarded, domain.Badge7DayStreak)
	}
	if rec.CurrentStreak >= monthStreak && rec.Badges.Add(domain.Badge30DayStreak) {
		awarded = append(awarded, domain.Badge30DayStreak)
	}
	return rec, awarded
}

// Summary сводка по всем темам пользователя.
type Summary struct {
	CurrentStreak   int      `json:"current_streak"`
	LongestStreak   int      `json:"longest_streak"`
	ConceptsLearned int      `json:"concepts_learned"`
	ArticlesRead    int      `json:"articles_read"`
	Badges          []string `json:"badges"`
	Topics          int      `json:"topics"`
}

// Aggregate: максимум по сериям, сумма по счётчикам, объединение значков.
func Aggregate(records []domain.ProgressRecord) Summary {
	var s Summary
	badges := domain.NewBadgeSet()
	for _, r := range records {
		s.CurrentStreak = max(s.CurrentStreak, r.CurrentStreak)
		s.LongestStreak = max(s.LongestStreak, r.LongestStreak)
		s.ConceptsLearned += r.ConceptsLearned
		s.ArticlesRead += r.ArticlesRead
		for b := range r.Badges {
			badges.Add(b)
		}
	}
	s.Topics = len(records)
	s.Badges = badges.Sorted()
	return s
}
