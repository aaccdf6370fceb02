// Package contenttest управляемый генератор контента для тестов.
package contenttest

import (
	"context"
	"sync"
	"sync/atomic"

	"dailydev/internal/content"
)

// Generator реализует content.Generator. Незаданные функции возвращают
// встроенный план, хук "hook: <concept>" и непустую статью.
type Generator struct {
	RoadmapFunc func(ctx context.Context, topic string, days int, level string) ([]content.RoadmapEntry, error)
	HookFunc    func(ctx context.Context, req content.HookRequest) (string, error)
	ArticleFunc func(ctx context.Context, req content.ArticleRequest) (content.Article, error)

	RoadmapCalls atomic.Int32
	HookCalls    atomic.Int32
	ArticleCalls atomic.Int32

	mu       sync.Mutex
	concepts []string
}

var _ content.Generator = (*Generator)(nil)

func (g *Generator) GenerateRoadmap(ctx context.Context, topic string, days int, level string) ([]content.RoadmapEntry, error) {
	g.RoadmapCalls.Add(1)
	if g.RoadmapFunc != nil {
		return g.RoadmapFunc(ctx, topic, days, level)
	}
	return content.DefaultRoadmap(topic, days), nil
}

func (g *Generator) GenerateHookText(ctx context.Context, req content.HookRequest) (string, error) {
	g.HookCalls.Add(1)
	if g.HookFunc != nil {
		return g.HookFunc(ctx, req)
	}
	return "hook: " + req.Concept, nil
}

func (g *Generator) GenerateArticle(ctx context.Context, req content.ArticleRequest) (content.Article, error) {
	g.ArticleCalls.Add(1)
	g.mu.Lock()
	g.concepts = append(g.concepts, req.Concept)
	g.mu.Unlock()
	if g.ArticleFunc != nil {
		return g.ArticleFunc(ctx, req)
	}
	return Article(req.Concept), nil
}

// ArticleConcepts концепты, для которых запрашивались статьи.
func (g *Generator) ArticleConcepts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.concepts...)
}

// Article непустая статья о концепте.
func Article(concept string) content.Article {
	return content.Article{
		ELI5:      concept + " explained simply",
		Technical: concept + " in depth",
		RealWorld: concept + " in production",
	}
}
