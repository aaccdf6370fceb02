// Package content описывает генератор учебного контента и всё, что не зависит
// от конкретного провайдера: промпты, разбор ответов и запасной контент.
package content

import (
	"context"

	"dailydev/internal/domain"
)

// RoadmapEntry одна строка плана, как её возвращает модель.
type RoadmapEntry struct {
	Day        int    `json:"day"`
	Concept    string `json:"concept"`
	Difficulty string `json:"difficulty"`
	ReadTime   int    `json:"read_time"`
}

// HookRequest параметры короткого сообщения-тизера.
type HookRequest struct {
	Topic      string
	Concept    string
	Difficulty domain.Difficulty
	UserLevel  string
}

// ArticleRequest параметры статьи.
type ArticleRequest struct {
	Topic        string
	Concept      string
	SkillSummary *string
}

// Article тело статьи без идентификаторов.
type Article struct {
	ELI5         string                   `json:"eli5"`
	Technical    string                   `json:"technical"`
	CodeSnippets []domain.CodeSnippet     `json:"code_snippets"`
	RealWorld    string                   `json:"real_world"`
	Practice     []domain.PracticeProblem `json:"practice"`
}

// Generator провайдер контента. Все методы могут вернуть ошибку,
// вызывающая сторона сама подставляет запасной вариант.
type Generator interface {
	GenerateRoadmap(ctx context.Context, topic string, durationDays int, userLevel string) ([]RoadmapEntry, error)
	GenerateHookText(ctx context.Context, req HookRequest) (string, error)
	GenerateArticle(ctx context.Context, req ArticleRequest) (Article, error)
}
