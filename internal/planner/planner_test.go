package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/content"
	"dailydev/internal/content/contenttest"
	"dailydev/internal/domain"
	"dailydev/internal/platform/logger"
	"dailydev/internal/shared"
	"dailydev/internal/store"
	"dailydev/internal/store/memstore"
	"dailydev/internal/store/storetest"
)

var clock = time.Date(2024, 6, 4, 2, 0, 0, 0, time.UTC)

func newPlanner(t *testing.T, gen content.Generator) (*Planner, *memstore.Store, domain.User) {
	t.Helper()
	s := memstore.New()
	u := storetest.NewUser(t, s, "whatsapp:+15551230000")
	p := New(s, gen, logger.Discard(), WithClock(func() time.Time { return clock }))
	return p, s, u
}

func TestEnroll_Validation(t *testing.T) {
	p, _, u := newPlanner(t, &contenttest.Generator{})
	ctx := context.Background()

	_, err := p.Enroll(ctx, u.ID, store.TopicDSA, 45)
	assert.True(t, shared.IsValidation(err))

	_, err = p.Enroll(ctx, u.ID, uuid.New(), 30)
	assert.True(t, shared.IsValidation(err))

	_, err = p.Enroll(ctx, uuid.New(), store.TopicDSA, 30)
	assert.True(t, shared.IsNotFound(err))
}

func TestEnroll_UsesGeneratorOutput(t *testing.T) {
	gen := &contenttest.Generator{
		RoadmapFunc: func(_ context.Context, topic string, days int, level string) ([]content.RoadmapEntry, error) {
			out := make([]content.RoadmapEntry, days+5)
			for i := range out {
				out[i] = content.RoadmapEntry{Day: 100 + i, Concept: fmt.Sprintf("Idea %d", i), Difficulty: "EXPERT", ReadTime: -1}
			}
			out[0].Difficulty = "Hard"
			return out, nil
		},
	}
	p, s, u := newPlanner(t, gen)
	ctx := context.Background()

	e, err := p.Enroll(ctx, u.ID, store.TopicSystemDesign, 30)
	require.NoError(t, err)
	assert.True(t, e.StartDate.Equal(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.TargetDate.Equal(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)))

	items, err := s.ListItems(ctx, u.ID, store.TopicSystemDesign)
	require.NoError(t, err)
	require.Len(t, items, 30)
	assert.Equal(t, 1, items[0].DayNumber)
	assert.Equal(t, "Idea 0", items[0].ConceptTitle)
	assert.Equal(t, "idea-0", items[0].ConceptSlug)
	assert.Equal(t, domain.DifficultyHard, items[0].Difficulty)
	assert.Equal(t, domain.DifficultyEasy, items[1].Difficulty)
	assert.Equal(t, domain.DifficultyHard, items[29].Difficulty)
	assert.Equal(t, 10, items[5].ReadTimeMinutes)
	assert.True(t, items[29].ScheduledDate.Equal(domain.AddDays(e.StartDate, 29)))

	rec, err := s.GetProgress(ctx, u.ID, store.TopicSystemDesign)
	require.NoError(t, err)
	assert.Zero(t, rec.CurrentStreak)
}

func TestEnroll_FallbackPlan(t *testing.T) {
	tests := map[string]func(context.Context, string, int, string) ([]content.RoadmapEntry, error){
		"generator error": func(context.Context, string, int, string) ([]content.RoadmapEntry, error) {
			return nil, errors.New("rate limited")
		},
		"too short": func(_ context.Context, topic string, days int, _ string) ([]content.RoadmapEntry, error) {
			return content.DefaultRoadmap(topic, days-1), nil
		},
		"blank concept": func(_ context.Context, topic string, days int, _ string) ([]content.RoadmapEntry, error) {
			out := content.DefaultRoadmap(topic, days)
			out[3].Concept = "  "
			return out, nil
		},
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			p, s, u := newPlanner(t, &contenttest.Generator{RoadmapFunc: fn})
			ctx := context.Background()

			_, err := p.Enroll(ctx, u.ID, store.TopicDSA, 60)
			require.NoError(t, err)
			items, err := s.ListItems(ctx, u.ID, store.TopicDSA)
			require.NoError(t, err)
			require.Len(t, items, 60)
			assert.Equal(t, "Arrays and Basic Operations", items[0].ConceptTitle)
			assert.Equal(t, "Arrays and Basic Operations (Review)", items[30].ConceptTitle)
			assert.Equal(t, domain.DifficultyEasy, items[19].Difficulty)
			assert.Equal(t, domain.DifficultyMedium, items[20].Difficulty)
			assert.Equal(t, domain.DifficultyHard, items[40].Difficulty)
		})
	}
}

func TestEnroll_NilGenerator(t *testing.T) {
	p, s, u := newPlanner(t, nil)
	_, err := p.Enroll(context.Background(), u.ID, store.TopicDSA, 30)
	require.NoError(t, err)
	items, _ := s.ListItems(context.Background(), u.ID, store.TopicDSA)
	assert.Len(t, items, 30)
}

func TestEnroll_Duplicate(t *testing.T) {
	gen := &contenttest.Generator{}
	p, s, u := newPlanner(t, gen)
	ctx := context.Background()

	_, err := p.Enroll(ctx, u.ID, store.TopicDSA, 30)
	require.NoError(t, err)

	_, err = p.Enroll(ctx, u.ID, store.TopicDSA, 90)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.True(t, shared.IsConflict(err))
	assert.EqualValues(t, 1, gen.RoadmapCalls.Load())

	items, err := s.ListItems(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Len(t, items, 30)
}

func TestEnroll_StartDateFollowsUserTimezone(t *testing.T) {
	s := memstore.New()
	u := domain.User{ID: uuid.New(), Handle: "telegram:5", ChannelStatus: domain.ChannelConnected, PreferredHour: 9, Timezone: "America/New_York"}
	require.NoError(t, s.CreateUser(context.Background(), u))

	local := New(s, nil, logger.Discard(), WithClock(func() time.Time { return clock }))
	e, err := local.Enroll(context.Background(), u.ID, store.TopicDSA, 30)
	require.NoError(t, err)
	assert.True(t, e.StartDate.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))

	utc := New(s, nil, logger.Discard(), WithClock(func() time.Time { return clock }), WithHourPolicy(domain.HourPolicyUTC))
	e, err = utc.Enroll(context.Background(), u.ID, store.TopicSystemDesign, 30)
	require.NoError(t, err)
	assert.True(t, e.StartDate.Equal(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)))
}

func TestNormalize(t *testing.T) {
	in := []content.RoadmapEntry{
		{Day: 7, Concept: " Tries ", Difficulty: "medium", ReadTime: 12},
		{Day: 9, Concept: "Heaps", Difficulty: "", ReadTime: 0},
		{Day: 3, Concept: "Extra", Difficulty: "easy", ReadTime: 5},
	}
	out, ok := Normalize(in, 2)
	require.True(t, ok)
	assert.Equal(t, []content.RoadmapEntry{
		{Day: 1, Concept: "Tries", Difficulty: "medium", ReadTime: 12},
		{Day: 2, Concept: "Heaps", Difficulty: "hard", ReadTime: 10},
	}, out)

	_, ok = Normalize(in, 4)
	assert.False(t, ok)
}
