// Package openai генератор контента через OpenAI-совместимый Chat Completions API
// (по умолчанию Groq).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dailydev/internal/content"
	"dailydev/internal/platform/httpclient"
	"dailydev/pkg/retry"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-70b-versatile"
)

// Generator реализует content.Generator.
type Generator struct {
	client      *httpclient.Client
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	retry       retry.Config
	log         *slog.Logger
}

var _ content.Generator = (*Generator)(nil)

// Option настраивает Generator.
type Option func(*Generator)

func WithTemperature(t float64) Option { return func(g *Generator) { g.temperature = t } }

func WithMaxTokens(n int) Option { return func(g *Generator) { g.maxTokens = n } }

func WithRetry(cfg retry.Config) Option { return func(g *Generator) { g.retry = cfg } }

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.log = l } }

// NewGenerator пустые baseURL и model заменяются значениями Groq.
func NewGenerator(c *httpclient.Client, baseURL, model, apiKey string, opts ...Option) *Generator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{
		client:      c,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: 0.7,
		maxTokens:   4000,
		retry:       retry.DefaultConfig(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

func (g *Generator) GenerateRoadmap(ctx context.Context, topic string, durationDays int, userLevel string) ([]content.RoadmapEntry, error) {
	var out []content.RoadmapEntry
	err := g.withRetry(ctx, "roadmap", func(ctx context.Context) error {
		raw, err := g.complete(ctx, content.RoadmapPrompt(topic, durationDays, userLevel), 0, false)
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
		raw, err := g.complete(ctx, content.HookPrompt(req), 300, false)
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
		raw, err := g.complete(ctx, content.ArticlePrompt(req), 0, true)
		if err != nil {
			return err
		}
		out, err = content.ParseArticle(raw)
		return err
	})
	return out, err
}

func (g *Generator) withRetry(ctx context.Context, what string, fn retry.Func) error {
	if g.apiKey == "" {
		return content.ErrNotConfigured
	}
	cfg := g.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		g.log.Warn("llm call failed, retrying", "what", what, "model", g.model, "attempt", attempt, "wait", wait, "err", err)
	}
	return retry.DoWithRetryable(ctx, cfg, fn, content.IsTransient)
}

// complete один вызов /chat/completions; maxTokens 0 означает значение по умолчанию.
func (g *Generator) complete(ctx context.Context, prompt string, maxTokens int, jsonMode bool) (string, error) {
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	body := chatRequest{
		Model:       g.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", content.ErrGenerationFailed, err)
	}
	if err := httpclient.CheckStatus("llm", resp); err != nil {
		return "", fmt.Errorf("%w: %w", content.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", content.ErrInvalidResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", content.ErrInvalidResponse)
	}
	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", content.ErrContentBlocked
	}
	return choice.Message.Content, nil
}
