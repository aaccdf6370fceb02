// Package gemini генератор контента на Google Gemini (google.golang.org/genai).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"dailydev/internal/content"
	"dailydev/pkg/retry"
)

const DefaultModel = "gemini-2.0-flash"

// models часть genai.Models, которой пользуется генератор.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator реализует content.Generator.
type Generator struct {
	models      models
	model       string
	temperature float32
	retry       retry.Config
	log         *slog.Logger
}

var _ content.Generator = (*Generator)(nil)

type Option func(*Generator)

func WithTemperature(t float32) Option { return func(g *Generator) { g.temperature = t } }

func WithRetry(cfg retry.Config) Option { return func(g *Generator) { g.retry = cfg } }

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.log = l } }

// New создаёт клиента Gemini API. Пустой ключ даёт content.ErrNotConfigured.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, content.ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", content.ErrNotConfigured, err)
	}
	return newGenerator(client.Models, model, opts...), nil
}

func newGenerator(m models, model string, opts ...Option) *Generator {
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{
		models:      m,
		model:       model,
		temperature: 0.7,
		retry:       retry.DefaultConfig(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) GenerateRoadmap(ctx context.Context, topic string, durationDays int, userLevel string) ([]content.RoadmapEntry, error) {
	var out []content.RoadmapEntry
	err := g.withRetry(ctx, "roadmap", func(ctx context.Context) error {
		raw, err := g.generate(ctx, content.RoadmapPrompt(topic, durationDays, userLevel), true)
		if err != nil {
			return err
		}
		out, err = content.ParseRoadmap(raw)
		return err
	})
	return out, err
}

func (g *Generator) GenerateHookText(ctx context.Context, req content.HookRequest) (string, error) {
	var out string
	err := g.withRetry(ctx, "hook", func(ctx context.Context) error {
		raw, err := g.generate(ctx, content.HookPrompt(req), false)
		if err != nil {
			return err
		}
		out, err = content.CleanHook(raw)
		return err
	})
	return out, err
}

func (g *Generator) GenerateArticle(ctx context.Context, req content.ArticleRequest) (content.Article, error) {
	var out content.Article
	err := g.withRetry(ctx, "article", func(ctx context.Context) error {
		raw, err := g.generate(ctx, content.ArticlePrompt(req), true)
		if err != nil {
			return err
		}
		out, err = content.ParseArticle(raw)
		return err
	})
	return out, err
}

func (g *Generator) withRetry(ctx context.Context, what string, fn retry.Func) error {
	cfg := g.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		g.log.Warn("gemini call failed, retrying", "what", what, "model", g.model, "attempt", attempt, "wait", wait, "err", err)
	}
	return retry.DoWithRetryable(ctx, cfg, fn, content.IsTransient)
}

// apiError ошибка вызова API; считается временной, кроме отмены контекста.
type apiError struct{ err error }

func (e apiError) Error() string   { return e.err.Error() }
func (e apiError) Unwrap() error   { return e.err }
func (e apiError) Temporary() bool { return !errors.Is(e.err, context.Canceled) }

func (g *Generator) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	t := g.temperature
	cfg := &genai.GenerateContentConfig{Temperature: &t}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", content.ErrGenerationFailed, apiError{err})
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", content.ErrInvalidResponse)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", content.ErrContentBlocked
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: empty candidate", content.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}
