package content

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoadmap_Banding(t *testing.T) {
	for _, n := range []int{30, 60, 90} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			r := DefaultRoadmap("System Design", n)
			require.Len(t, r, n)
			for i, e := range r {
				assert.Equal(t, i+1, e.Day)
				assert.Equal(t, 10+(i%5)*2, e.ReadTime)
				assert.Equal(t, BandDifficulty(i, n), e.Difficulty)
			}
			assert.Equal(t, "easy", r[0].Difficulty)
			assert.Equal(t, "medium", r[n/3].Difficulty)
			assert.Equal(t, "hard", r[n-1].Difficulty)
		})
	}
}

func TestDefaultRoadmap_RepeatsWithSuffix(t *testing.T) {
	r := DefaultRoadmap("DSA", 90)
	assert.Equal(t, "Arrays and Basic Operations", r[0].Concept)
	assert.Equal(t, "Arrays and Basic Operations (Review)", r[30].Concept)
	assert.Equal(t, "Arrays and Basic Operations (Review 2)", r[60].Concept)
	assert.Equal(t, "Advanced Problem Solving (Review 2)", r[89].Concept)
}

func TestDefaultRoadmap_UnknownTopicUsesDSA(t *testing.T) {
	assert.Equal(t, DefaultRoadmap("DSA", 30), DefaultRoadmap("Rust", 30))
	assert.Equal(t, "System Design Basics", DefaultRoadmap("System Design", 1)[0].Concept)
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n[1]\n```": "[1]",
		"```\n{}\n```":      "{}",
		"  [2]  ":           "[2]",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in))
	}
}

func TestParseRoadmap(t *testing.T) {
	entries, err := ParseRoadmap("```json\n[{\"day\":1,\"concept\":\"Arrays\",\"difficulty\":\"easy\",\"read_time\":12}]\n```")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, RoadmapEntry{Day: 1, Concept: "Arrays", Difficulty: "easy", ReadTime: 12}, entries[0])

	wrapped, err := ParseRoadmap(`{"roadmap":[{"day":1,"concept":"Heaps"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "Heaps", wrapped[0].Concept)

	_, err = ParseRoadmap("sorry, I can't")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseArticle(t *testing.T) {
	a, err := ParseArticle(`{"eli5":"pizza","technical":"O(n)","code_snippets":[{"language":"Python","code":"x=1","explanation":"e"}],"real_world":"Netflix","practice":[{"question":"q","difficulty":"easy"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "pizza", a.ELI5)
	require.Len(t, a.CodeSnippets, 1)
	assert.Equal(t, "Python", a.CodeSnippets[0].Language)
	require.Len(t, a.Practice, 1)

	_, err = ParseArticle(`{"eli5":"","technical":" "}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestFallbacks(t *testing.T) {
	assert.Equal(t, "🎯 Today's concept: Heaps\n\nWant to learn about this? Reply 'YES'", FallbackHook("Heaps"))

	p := PlaceholderArticle("Heaps")
	assert.Equal(t, "We're working on the explanation for Heaps. Check back soon!", p.ELI5)
	assert.Equal(t, "Content is being generated...", p.Technical)
	assert.Equal(t, "Examples coming soon...", p.RealWorld)
	assert.Empty(t, p.CodeSnippets)
	assert.Empty(t, p.Practice)
	assert.False(t, p.Empty())
}

func TestCleanHook(t *testing.T) {
	h, err := CleanHook("  \"🚀 Netflix had a problem\"  ")
	require.NoError(t, err)
	assert.Equal(t, "🚀 Netflix had a problem", h)

	_, err = CleanHook("   ")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(fmt.Errorf("x: %w", ErrInvalidResponse)))
	assert.False(t, IsTransient(ErrContentBlocked))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(errors.New("bad request")))
}

func TestPrompts(t *testing.T) {
	assert.Contains(t, RoadmapPrompt("DSA", 30, "beginner"), "30-day learning roadmap for DSA")
	assert.Contains(t, HookPrompt(HookRequest{Topic: "DSA", Concept: "Heaps", Difficulty: "easy"}), "Concept: Heaps")

	skills := `{"languages":["Go"]}`
	assert.Contains(t, ArticlePrompt(ArticleRequest{Topic: "DSA", Concept: "Heaps", SkillSummary: &skills}), skills)
	assert.Contains(t, ArticlePrompt(ArticleRequest{Topic: "DSA", Concept: "Heaps"}), "Intermediate developer")
}
