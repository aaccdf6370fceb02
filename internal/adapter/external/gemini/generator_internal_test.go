package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"dailydev/internal/content"
	"dailydev/internal/platform/logger"
	"dailydev/pkg/retry"
)

type fakeModels struct {
	calls int
	last  *genai.GenerateContentConfig
	fn    func(call int) (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.last = cfg
	return f.fn(f.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		FinishReason: genai.FinishReasonStop,
	}}}
}

func newTestGenerator(f *fakeModels) *Generator {
	return newGenerator(f, "",
		WithLogger(logger.Discard()),
		WithRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}))
}

func TestGenerateRoadmap_JSONMode(t *testing.T) {
	f := &fakeModels{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(`[{"day":1,"concept":"Load Balancing","difficulty":"medium","read_time":14}]`), nil
	}}
	got, err := newTestGenerator(f).GenerateRoadmap(context.Background(), "System Design", 30, "senior")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Load Balancing", got[0].Concept)
	assert.Equal(t, "application/json", f.last.ResponseMIMEType)
	require.NotNil(t, f.last.Temperature)
}

func TestGenerateHookText_PlainText(t *testing.T) {
	f := &fakeModels{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse("  Caching saved Netflix. Reply YES  "), nil
	}}
	hook, err := newTestGenerator(f).GenerateHookText(context.Background(), content.HookRequest{Concept: "Caching"})
	require.NoError(t, err)
	assert.Equal(t, "Caching saved Netflix. Reply YES", hook)
	assert.Empty(t, f.last.ResponseMIMEType)
}

func TestGenerate_RetriesAPIError(t *testing.T) {
	f := &fakeModels{fn: func(call int) (*genai.GenerateContentResponse, error) {
		if call < 3 {
			return nil, errors.New("rpc error: unavailable")
		}
		return textResponse("ok hook"), nil
	}}
	hook, err := newTestGenerator(f).GenerateHookText(context.Background(), content.HookRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok hook", hook)
	assert.Equal(t, 3, f.calls)
}

func TestGenerate_SafetyBlockNotRetried(t *testing.T) {
	f := &fakeModels{fn: func(int) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, nil
	}}
	_, err := newTestGenerator(f).GenerateArticle(context.Background(), content.ArticleRequest{Concept: "x"})
	assert.ErrorIs(t, err, content.ErrContentBlocked)
	assert.Equal(t, 1, f.calls)
}

func TestGenerate_NoCandidates(t *testing.T) {
	f := &fakeModels{fn: func(int) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}}
	_, err := newTestGenerator(f).GenerateArticle(context.Background(), content.ArticleRequest{Concept: "x"})
	assert.ErrorIs(t, err, content.ErrInvalidResponse)
	assert.Equal(t, 1, f.calls)
}

func TestNew_EmptyKey(t *testing.T) {
	_, err := New(context.Background(), "", "")
	assert.ErrorIs(t, err, content.ErrNotConfigured)
}
