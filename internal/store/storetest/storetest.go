// Package storetest общий набор проверок для реализаций store.Store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/domain"
	"dailydev/internal/shared"
	"dailydev/internal/store"
)

// Factory создаёт пустое хранилище с засеянными темами.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// Run прогоняет все проверки контракта.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("SeededTopics", func(t *testing.T) { testTopics(t, newStore(t)) })
	t.Run("EnrollmentConflict", func(t *testing.T) { testEnrollment(t, newStore(t)) })
	t.Run("CivilDates", func(t *testing.T) { testCivilDates(t, newStore(t)) })
	t.Run("ItemOrdering", func(t *testing.T) { testItemOrdering(t, newStore(t)) })
	t.Run("Transitions", func(t *testing.T) { testTransitions(t, newStore(t)) })
	t.Run("Hook", func(t *testing.T) { testHook(t, newStore(t)) })
	t.Run("LatestSent", func(t *testing.T) { testLatestSent(t, newStore(t)) })
	t.Run("Artifacts", func(t *testing.T) { testArtifacts(t, newStore(t)) })
	t.Run("ConcurrentArtifacts", func(t *testing.T) { testConcurrentArtifacts(t, newStore(t)) })
	t.Run("Progress", func(t *testing.T) { testProgress(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

// NewUser создаёт подключённого пользователя с адресом handle.
func NewUser(t *testing.T, s store.Store, handle string) domain.User {
	t.Helper()
	u := domain.User{
		ID:              uuid.New(),
		Handle:          handle,
		ChannelStatus:   domain.ChannelConnected,
		PreferredHour:   domain.DefaultPreferredHour,
		Timezone:        domain.DefaultTimezone,
		ExperienceLevel: domain.DefaultExperienceLevel,
		CreatedAt:       base,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// NewItems создаёт n pending элементов по теме, начиная с base.
func NewItems(t *testing.T, s store.Store, userID, topicID uuid.UUID, n int) []domain.ScheduleItem {
	t.Helper()
	items := make([]domain.ScheduleItem, n)
	for i := range items {
		title := fmt.Sprintf("Concept %d", i+1)
		items[i] = domain.ScheduleItem{
			ID:              uuid.New(),
			UserID:          userID,
			TopicID:         topicID,
			DayNumber:       i + 1,
			ConceptTitle:    title,
			ConceptSlug:     domain.Slugify(title),
			Difficulty:      domain.DifficultyEasy,
			ReadTimeMinutes: 10,
			ScheduledDate:   domain.AddDays(base, i),
			Status:          domain.StatusPending,
			CreatedAt:       base,
		}
	}
	require.NoError(t, s.CreateItems(context.Background(), items))
	return items
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000001")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Handle, got.Handle)
	assert.Equal(t, 9, got.PreferredHour)
	assert.Nil(t, got.SkillSummary)

	byHandle, err := s.GetUserByHandle(ctx, u.Handle)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byHandle.ID)

	_, err = s.GetUserByHandle(ctx, "whatsapp:+0")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, shared.IsNotFound(err))

	dup := u
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrConflict)

	skills := `{"languages":["Go"]}`
	offline := domain.User{ID: uuid.New(), Handle: "telegram:7", ChannelStatus: domain.ChannelPending, Timezone: "UTC", SkillSummary: &skills, CreatedAt: base}
	require.NoError(t, s.CreateUser(ctx, offline))
	got, err = s.GetUser(ctx, offline.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SkillSummary)
	assert.Equal(t, skills, *got.SkillSummary)

	reachable, err := s.ListReachableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, reachable, 1)
	assert.Equal(t, u.ID, reachable[0].ID)
}

func testTopics(t *testing.T, s store.Store) {
	ctx := context.Background()
	dsa, err := s.GetTopic(ctx, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, "DSA", dsa.Name)

	sd, err := s.GetTopic(ctx, store.TopicSystemDesign)
	require.NoError(t, err)
	assert.Equal(t, "System Design", sd.Name)

	rust := domain.Topic{ID: uuid.New(), Name: "Rust", Slug: "rust"}
	require.NoError(t, s.CreateTopic(ctx, rust))
	got, err := s.GetTopic(ctx, rust.ID)
	require.NoError(t, err)
	assert.Equal(t, "rust", got.Slug)

	_, err = s.GetTopic(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testEnrollment(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000002")
	e := domain.Enrollment{
		ID: uuid.New(), UserID: u.ID, TopicID: store.TopicDSA, DurationDays: 30,
		StartDate: base, TargetDate: domain.AddDays(base, 30), Status: domain.EnrollmentActive, CreatedAt: base,
	}
	require.NoError(t, s.CreateEnrollment(ctx, e))

	again := e
	again.ID = uuid.New()
	err := s.CreateEnrollment(ctx, again)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.True(t, shared.IsConflict(err))

	got, err := s.GetEnrollment(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	// время суток отбрасывается, все хранилища возвращают полночь UTC
	assert.True(t, got.StartDate.Equal(domain.CivilDate(base)), "start %v", got.StartDate)
	assert.True(t, got.TargetDate.Equal(domain.AddDays(base, 30)), "target %v", got.TargetDate)

	list, err := s.ListEnrollments(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetEnrollment(ctx, u.ID, store.TopicSystemDesign)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCivilDates(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000009")
	late := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	it := domain.ScheduleItem{
		ID: uuid.New(), UserID: u.ID, TopicID: store.TopicDSA, DayNumber: 1,
		ConceptTitle: "Heaps", ConceptSlug: "heaps", Difficulty: domain.DifficultyEasy,
		ReadTimeMinutes: 10, ScheduledDate: late, Status: domain.StatusPending, CreatedAt: base,
	}
	require.NoError(t, s.CreateItems(ctx, []domain.ScheduleItem{it}))

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, got.ScheduledDate.Equal(domain.CivilDate(late)), "scheduled %v", got.ScheduledDate)
}

func testItemOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000003")
	dsa := NewItems(t, s, u.ID, store.TopicDSA, 3)
	sd := NewItems(t, s, u.ID, store.TopicSystemDesign, 2)

	list, err := s.ListItems(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, it := range list {
		assert.Equal(t, i+1, it.DayNumber)
		assert.Equal(t, domain.StatusPending, it.Status)
		assert.True(t, it.ScheduledDate.Equal(domain.AddDays(base, i)))
	}

	// день 1 есть в обеих темах; при равной дате побеждает меньший topic id
	next, err := s.NextPendingItem(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.DayNumber)
	want := dsa[0].ID
	if store.TopicSystemDesign.String() < store.TopicDSA.String() {
		want = sd[0].ID
	}
	assert.Equal(t, want, next.ID)

	dup := dsa[0]
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateItems(ctx, []domain.ScheduleItem{dup}), store.ErrConflict)

	_, err = s.NextPendingItem(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000004")
	items := NewItems(t, s, u.ID, store.TopicDSA, 3)
	id := items[0].ID

	assert.ErrorIs(t, s.MarkRead(ctx, id, base), store.ErrStale, "pending→read")

	require.NoError(t, s.MarkSent(ctx, id, base, "SM123"))
	err := s.MarkSent(ctx, id, base.Add(time.Minute), "SM124")
	assert.ErrorIs(t, err, store.ErrStale, "sent→sent")
	assert.True(t, shared.IsConflict(err))

	got, err := s.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(base))
	require.NotNil(t, got.DeliveryID)
	assert.Equal(t, "SM123", *got.DeliveryID)
	assert.Nil(t, got.RespondedAt)

	due, err := s.NextDueItem(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, id, due.ID, "sent item is still due")

	next, err := s.NextPendingItem(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, next.ID)

	responded := base.Add(2 * time.Hour)
	require.NoError(t, s.MarkRead(ctx, id, responded))
	assert.ErrorIs(t, s.MarkRead(ctx, id, responded), store.ErrStale, "read is terminal")
	assert.ErrorIs(t, s.MarkSkipped(ctx, id), store.ErrStale)

	got, err = s.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, got.Status)
	require.NotNil(t, got.RespondedAt)
	assert.True(t, got.RespondedAt.Equal(responded))

	require.NoError(t, s.MarkSkipped(ctx, items[1].ID))
	assert.ErrorIs(t, s.MarkSent(ctx, items[1].ID, base, ""), store.ErrStale, "skipped is terminal")

	due, err = s.NextDueItem(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, items[2].ID, due.ID)

	assert.ErrorIs(t, s.MarkSent(ctx, uuid.New(), base, ""), store.ErrNotFound)
}

func testHook(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000005")
	it := NewItems(t, s, u.ID, store.TopicDSA, 1)[0]

	h, err := s.SetHookIfEmpty(ctx, it.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", h)

	h, err = s.SetHookIfEmpty(ctx, it.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", h)

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.HookText())

	_, err = s.SetHookIfEmpty(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testLatestSent(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000006")
	items := NewItems(t, s, u.ID, store.TopicDSA, 3)

	last, err := s.LastSentAt(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = s.LatestSentItem(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.MarkSent(ctx, items[0].ID, base, ""))
	require.NoError(t, s.MarkSent(ctx, items[1].ID, base.Add(24*time.Hour), ""))

	latest, err := s.LatestSentItem(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, latest.ID)

	require.NoError(t, s.MarkRead(ctx, items[1].ID, base.Add(25*time.Hour)))
	latest, err = s.LatestSentItem(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, latest.ID)

	last, err = s.LastSentAt(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(base.Add(24*time.Hour)), "read items still count")
}

func newArtifact(itemID uuid.UUID, eli5 string) domain.Artifact {
	return domain.Artifact{
		ID:             uuid.New(),
		ScheduleItemID: itemID,
		Title:          "Heaps",
		Slug:           "heaps",
		ELI5:           eli5,
		Technical:      "O(log n)",
		CodeSnippets:   []domain.CodeSnippet{{Language: "Python", Code: "import heapq", Explanation: "stdlib"}},
		RealWorld:      "schedulers",
		Practice:       []domain.PracticeProblem{{Question: "Kth largest", Difficulty: "medium", Link: "https://leetcode.com/problems/kth-largest-element-in-an-array/"}},
		CreatedAt:      base,
	}
}

func testArtifacts(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000007")
	it := NewItems(t, s, u.ID, store.TopicDSA, 1)[0]

	_, err := s.GetArtifactByItem(ctx, it.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	first, created, err := s.CreateArtifact(ctx, newArtifact(it.ID, "pizza"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.CreateArtifact(ctx, newArtifact(it.ID, "library"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "pizza", second.ELI5)

	got, err := s.GetArtifact(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CodeSnippets, got.CodeSnippets)
	assert.Equal(t, first.Practice, got.Practice)
	assert.False(t, got.Placeholder)

	viewed, err := s.IncrementArtifactViews(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.ViewCount)
	viewed, err = s.IncrementArtifactViews(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, viewed.ViewCount)

	_, err = s.IncrementArtifactViews(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentArtifacts(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000008")
	it := NewItems(t, s, u.ID, store.TopicDSA, 1)[0]

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[uuid.UUID]int)
		created int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, ok, err := s.CreateArtifact(ctx, newArtifact(it.ID, fmt.Sprintf("variant %d", i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[a.ID]++
			if ok {
				created++
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func testProgress(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000009")

	_, err := s.GetProgress(ctx, u.ID, store.TopicDSA)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpsertProgress(ctx, domain.ProgressRecord{UserID: u.ID, TopicID: store.TopicDSA}))
	p, err := s.GetProgress(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Zero(t, p.CurrentStreak)
	assert.Nil(t, p.LastActivityDate)
	assert.Empty(t, p.Badges)

	day := domain.AddDays(base, 6)
	p.CurrentStreak, p.LongestStreak = 7, 7
	p.LastActivityDate = &day
	p.ConceptsLearned, p.ArticlesRead = 7, 7
	p.Badges = domain.NewBadgeSet(domain.Badge7DayStreak)
	require.NoError(t, s.UpsertProgress(ctx, p))

	got, err := s.GetProgress(ctx, u.ID, store.TopicDSA)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentStreak)
	assert.Equal(t, 7, got.ArticlesRead)
	require.NotNil(t, got.LastActivityDate)
	assert.True(t, got.LastActivityDate.Equal(day))
	assert.True(t, got.Badges.Has(domain.Badge7DayStreak))
	assert.Len(t, got.Badges, 1)

	require.NoError(t, s.UpsertProgress(ctx, domain.ProgressRecord{UserID: u.ID, TopicID: store.TopicSystemDesign, CurrentStreak: 2}))
	all, err := s.ListProgress(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "whatsapp:+15550000010")
	it := NewItems(t, s, u.ID, store.TopicDSA, 1)[0]
	require.NoError(t, s.MarkSent(ctx, it.ID, base, ""))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.MarkRead(ctx, it.ID, base.Add(time.Hour)))
		return s.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.UpsertProgress(ctx, domain.ProgressRecord{UserID: u.ID, TopicID: store.TopicDSA, CurrentStreak: 1}); err != nil {
				return err
			}
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status, "rolled back")
	_, err = s.GetProgress(ctx, u.ID, store.TopicDSA)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
		return s.MarkRead(ctx, it.ID, base.Add(time.Hour))
	}))
	got, err = s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, got.Status)
}
