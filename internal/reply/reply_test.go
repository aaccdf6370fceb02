package reply

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/content"
	"dailydev/internal/content/contenttest"
	"dailydev/internal/domain"
	"dailydev/internal/messaging/messagingtest"
	"dailydev/internal/platform/logger"
	"dailydev/internal/store"
	"dailydev/internal/store/memstore"
	"dailydev/internal/store/storetest"
)

func TestIsAffirmative(t *testing.T) {
	for _, s := range []string{"yes", "YES", " y ", "Yeah", "yep", "sure", "OK", "okay\n"} {
		assert.True(t, IsAffirmative(s), s)
	}
	for _, s := range []string{"", "no", "maybe later", "yes please", "nope", "k", "y e s"} {
		assert.False(t, IsAffirmative(s), s)
	}
}

func TestFollowUpMessage(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t,
		"📚 Here's your deep dive on *Heaps*:\n\nhttp://localhost:3000/article/11111111-2222-3333-4444-555555555555\n\nHappy learning! 🚀",
		FollowUpMessage("http://localhost:3000/", "Heaps", id))
}

var sentAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	gen    *contenttest.Generator
	sender *messagingtest.Recorder
	now    time.Time
	proc   *Processor
	user   domain.User
	items  []domain.ScheduleItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		gen:    &contenttest.Generator{},
		sender: &messagingtest.Recorder{},
		now:    sentAt.Add(2 * time.Hour),
	}
	f.user = storetest.NewUser(t, f.store, "whatsapp:+15557770000")
	f.items = storetest.NewItems(t, f.store, f.user.ID, store.TopicDSA, 3)
	arts := NewArtifacts(f.store, f.gen, logger.Discard(), time.Second)
	f.proc = NewProcessor(f.store, arts, f.sender, logger.Discard(),
		Config{FrontendURL: "http://localhost:3000"}, WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) send(t *testing.T, i int, at time.Time) {
	t.Helper()
	require.NoError(t, f.store.MarkSent(context.Background(), f.items[i].ID, at, ""))
}

func TestHandle_CompletesLatestSentItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.send(t, 0, sentAt)

	ok, err := f.proc.Handle(ctx, "whatsapp:+15557770000", " Yes ")
	require.NoError(t, err)
	assert.True(t, ok)

	item, err := f.store.GetItem(ctx, f.items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, item.Status)
	require.NotNil(t, item.RespondedAt)
	assert.True(t, item.RespondedAt.Equal(f.now))

	art, err := f.store.GetArtifactByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, art.Placeholder)
	assert.Equal(t, "Concept 1", art.Title)

	rec, err := f.store.GetProgress(ctx, f.user.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.ConceptsLearned)

	msgs := f.sender.To(f.user.Handle)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "http://localhost:3000/article/"+art.ID.String())

	// второй ответ: ждать больше нечего
	ok, err = f.proc.Handle(ctx, f.user.Handle, "yes")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestHandle_NoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.proc.Handle(ctx, f.user.Handle, "yes")
	require.NoError(t, err)
	assert.False(t, ok, "nothing sent yet")

	f.send(t, 0, sentAt)
	ok, err = f.proc.Handle(ctx, f.user.Handle, "tell me more")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.proc.Handle(ctx, "whatsapp:+19999999999", "yes")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.proc.Handle(ctx, "telegram:", "yes")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, f.gen.ArticleCalls.Load())
	item, _ := f.store.GetItem(ctx, f.items[0].ID)
	assert.Equal(t, domain.StatusSent, item.Status)
}

func TestHandle_BareNumberIsWhatsApp(t *testing.T) {
	f := newFixture(t)
	f.send(t, 0, sentAt)
	ok, err := f.proc.Handle(context.Background(), "+15557770000", "ok")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandle_PicksMostRecentSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.send(t, 0, sentAt)
	f.send(t, 1, sentAt.Add(24*time.Hour))
	f.now = sentAt.Add(25 * time.Hour)

	ok, err := f.proc.Handle(ctx, f.user.Handle, "yes")
	require.NoError(t, err)
	require.True(t, ok)

	first, _ := f.store.GetItem(ctx, f.items[0].ID)
	second, _ := f.store.GetItem(ctx, f.items[1].ID)
	assert.Equal(t, domain.StatusSent, first.Status)
	assert.Equal(t, domain.StatusRead, second.Status)
}

func TestHandle_PlaceholderOnGenerationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gen.ArticleFunc = func(context.Context, content.ArticleRequest) (content.Article, error) {
		return content.Article{}, errors.New("503")
	}
	f.send(t, 0, sentAt)

	ok, err := f.proc.Handle(ctx, f.user.Handle, "yes")
	require.NoError(t, err)
	assert.True(t, ok)

	art, err := f.store.GetArtifactByItem(ctx, f.items[0].ID)
	require.NoError(t, err)
	assert.True(t, art.Placeholder)
	assert.Equal(t, "We're working on the explanation for Concept 1. Check back soon!", art.ELI5)
	assert.Empty(t, art.CodeSnippets)
}

func TestHandle_FollowUpFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.sender.Err = errors.New("twilio down")
	f.send(t, 0, sentAt)

	ok, err := f.proc.Handle(context.Background(), f.user.Handle, "yes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandle_StreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		day := sentAt.Add(time.Duration(i) * 24 * time.Hour)
		f.send(t, i, day)
		f.now = day.Add(time.Hour)
		ok, err := f.proc.Handle(ctx, f.user.Handle, "yes")
		require.NoError(t, err)
		require.True(t, ok)
	}
	rec, err := f.store.GetProgress(ctx, f.user.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.CurrentStreak)
	assert.Equal(t, 3, rec.LongestStreak)
	assert.Equal(t, 3, rec.ArticlesRead)
}

func TestHandle_ConcurrentRepliesAdvanceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.send(t, 0, sentAt)

	var (
		wg       sync.WaitGroup
		advanced atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.proc.Handle(ctx, f.user.Handle, "yes")
			assert.NoError(t, err)
			if ok {
				advanced.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, advanced.Load())
	assert.EqualValues(t, 1, f.gen.ArticleCalls.Load())
	rec, err := f.store.GetProgress(ctx, f.user.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ConceptsLearned)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestArtifacts_EnsureCollapsesConcurrentCalls(t *testing.T) {
	s := memstore.New()
	u := storetest.NewUser(t, s, "telegram:99")
	item := storetest.NewItems(t, s, u.ID, store.TopicSystemDesign, 1)[0]

	release := make(chan struct{})
	gen := &contenttest.Generator{
		ArticleFunc: func(ctx context.Context, req content.ArticleRequest) (content.Article, error) {
			<-release
			assert.Equal(t, "System Design", req.Topic)
			return contenttest.Article(req.Concept), nil
		},
	}
	arts := NewArtifacts(s, gen, logger.Discard(), time.Second)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]bool{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := arts.Ensure(context.Background(), item)
			assert.NoError(t, err)
			mu.Lock()
			ids[a.ID] = true
			mu.Unlock()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.EqualValues(t, 1, gen.ArticleCalls.Load())

	again, err := arts.Ensure(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, ids[again.ID])
	assert.EqualValues(t, 1, gen.ArticleCalls.Load())
}

func TestArtifacts_EmptyArticleIsPlaceholder(t *testing.T) {
	s := memstore.New()
	u := storetest.NewUser(t, s, "telegram:98")
	item := storetest.NewItems(t, s, u.ID, store.TopicDSA, 1)[0]
	gen := &contenttest.Generator{
		ArticleFunc: func(context.Context, content.ArticleRequest) (content.Article, error) {
			return content.Article{ELI5: "  "}, nil
		},
	}
	a, err := NewArtifacts(s, gen, logger.Discard(), 0).Ensure(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, a.Placeholder)
	assert.True(t, strings.HasPrefix(a.ELI5, "We're working on"))
}
