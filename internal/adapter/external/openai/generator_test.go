package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/adapter/external/openai"
	"dailydev/internal/content"
	"dailydev/internal/platform/httpclient"
	"dailydev/internal/platform/logger"
	"dailydev/pkg/retry"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
}

func completion(contentText, finish string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": contentText},
			"finish_reason": finish,
		}},
	})
	return string(b)
}

func newGenerator(rt http.RoundTripper, apiKey string) *openai.Generator {
	client := httpclient.New(httpclient.WithTransport(rt), httpclient.WithLogger(logger.Discard()))
	return openai.NewGenerator(client, "https://llm.test/v1/", "", apiKey,
		openai.WithLogger(logger.Discard()),
		openai.WithRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}))
}

func TestGenerateRoadmap(t *testing.T) {
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.String() != "https://llm.test/v1/chat/completions" {
			t.Fatalf("url=%s", r.URL)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk_test" {
			t.Fatalf("authorization=%q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["model"] != openai.DefaultModel {
			t.Fatalf("model=%v", body["model"])
		}
		if _, ok := body["response_format"]; ok {
			t.Fatalf("roadmap must not use json mode")
		}
		return reply(200, completion("```json\n[{\"day\":1,\"concept\":\"Heaps\",\"difficulty\":\"easy\",\"read_time\":12}]\n```", "stop")), nil
	})

	got, err := newGenerator(rt, "gsk_test").GenerateRoadmap(context.Background(), "DSA", 30, "beginner")
	require.NoError(t, err)
	assert.Equal(t, []content.RoadmapEntry{{Day: 1, Concept: "Heaps", Difficulty: "easy", ReadTime: 12}}, got)
}

func TestGenerateArticle_JSONMode(t *testing.T) {
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		var body struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)
		return reply(200, completion(`{"eli5":"a pile","technical":"O(log n)","real_world":"schedulers","code_snippets":[],"practice":[]}`, "stop")), nil
	})

	art, err := newGenerator(rt, "k").GenerateArticle(context.Background(), content.ArticleRequest{Topic: "DSA", Concept: "Heaps"})
	require.NoError(t, err)
	assert.Equal(t, "a pile", art.ELI5)
}

func TestGenerateHookText_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return reply(503, "overloaded"), nil
		}
		return reply(200, completion(`"🎯 Heaps power your OS scheduler. Reply YES"`, "stop")), nil
	})

	hook, err := newGenerator(rt, "k").GenerateHookText(context.Background(), content.HookRequest{Concept: "Heaps"})
	require.NoError(t, err)
	assert.Equal(t, "🎯 Heaps power your OS scheduler. Reply YES", hook)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerate_PermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    func() *http.Response
		wantErr error
	}{
		{"bad request", func() *http.Response { return reply(400, `{"error":"bad model"}`) }, content.ErrGenerationFailed},
		{"content filter", func() *http.Response { return reply(200, completion("", "content_filter")) }, content.ErrContentBlocked},
		{"not json", func() *http.Response { return reply(200, completion("sure! here you go", "stop")) }, content.ErrInvalidResponse},
		{"no choices", func() *http.Response { return reply(200, `{"choices":[]}`) }, content.ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			rt := rtFunc(func(*http.Request) (*http.Response, error) {
				calls.Add(1)
				return tt.resp(), nil
			})
			_, err := newGenerator(rt, "k").GenerateArticle(context.Background(), content.ArticleRequest{Concept: "Heaps"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.EqualValues(t, 1, calls.Load(), "not retried")
		})
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	var calls atomic.Int32
	rt := rtFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return reply(429, "slow down"), nil
	})
	_, err := newGenerator(rt, "k").GenerateRoadmap(context.Background(), "DSA", 30, "")
	assert.ErrorIs(t, err, content.ErrGenerationFailed)
	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 429, se.Code)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerate_NotConfigured(t *testing.T) {
	rt := rtFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("unexpected request")
		return nil, nil
	})
	_, err := newGenerator(rt, "").GenerateHookText(context.Background(), content.HookRequest{})
	assert.ErrorIs(t, err, content.ErrNotConfigured)
}
