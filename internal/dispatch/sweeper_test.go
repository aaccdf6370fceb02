package dispatch

import (
	"context"
	"errors"
	"fmt"
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

var nineUTC = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	gen    *contenttest.Generator
	sender *messagingtest.Recorder
	now    time.Time
}

func newFixture() *fixture {
	return &fixture{store: memstore.New(), gen: &contenttest.Generator{}, sender: &messagingtest.Recorder{}, now: nineUTC}
}

func (f *fixture) sweeper(cfg Config, opts ...Option) *Sweeper {
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	return New(f.store, f.gen, f.sender, logger.Discard(), cfg, opts...)
}

func TestRunOnce_SendsHookOncePerDay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001111")
	items := storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 3)
	sw := f.sweeper(Config{})

	stats, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Sent)

	got, err := f.store.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, "hook: Concept 1", got.HookText())
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(nineUTC))
	require.NotNil(t, got.DeliveryID)
	assert.Equal(t, "MSG001", *got.DeliveryID)

	msgs := f.sender.To(u.Handle)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hook: Concept 1", msgs[0].Text)

	// повторный обход в том же часе ничего не отправляет
	f.now = nineUTC.Add(30 * time.Minute)
	stats, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, f.sender.Sent(), 1)

	// на следующий день уходит второй концепт
	f.now = nineUTC.Add(24 * time.Hour)
	stats, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	got, err = f.store.GetItem(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.EqualValues(t, 2, f.gen.HookCalls.Load())
}

func TestRunOnce_PanicCountsAsFailed(t *testing.T) {
	f := newFixture()
	var calls atomic.Int32
	f.gen.HookFunc = func(_ context.Context, req content.HookRequest) (string, error) {
		if calls.Add(1) == 1 {
			var m map[string]int
			m["boom"]++
		}
		return "hook: " + req.Concept, nil
	}
	for _, h := range []string{"whatsapp:+15550001121", "whatsapp:+15550001122"} {
		u := storetest.NewUser(t, f.store, h)
		storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	}

	var stats SweepStats
	var err error
	require.NotPanics(t, func() {
		stats, err = f.sweeper(Config{}).RunOnce(context.Background())
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestRunOnce_NotPreferredHour(t *testing.T) {
	f := newFixture()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001112")
	storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	f.now = nineUTC.Add(time.Hour)

	stats, err := f.sweeper(Config{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Candidates)
	assert.Zero(t, stats.Matched)
	assert.Empty(t, f.sender.Sent())
}

func TestRunOnce_HourPolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := domain.User{ID: uuid.New(), Handle: "telegram:77", ChannelStatus: domain.ChannelConnected, PreferredHour: 9, Timezone: "America/New_York"}
	require.NoError(t, f.store.CreateUser(ctx, u))
	storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	f.now = time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)

	stats, err := f.sweeper(Config{Policy: domain.HourPolicyUTC}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Matched)

	stats, err = f.sweeper(Config{Policy: domain.HourPolicyLocal}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
}

func TestRunOnce_FallbackHookNotPersisted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gen.HookFunc = func(context.Context, content.HookRequest) (string, error) {
		return "", errors.New("llm down")
	}
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001113")
	items := storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)

	stats, err := f.sweeper(Config{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)

	msgs := f.sender.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, content.FallbackHook("Concept 1"), msgs[0].Text)

	got, err := f.store.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.Hook)
	assert.Equal(t, domain.StatusSent, got.Status)
}

func TestRunOnce_StoredHookReused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001114")
	items := storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	_, err := f.store.SetHookIfEmpty(ctx, items[0].ID, "stored hook")
	require.NoError(t, err)

	_, err = f.sweeper(Config{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.gen.HookCalls.Load())
	assert.Equal(t, "stored hook", f.sender.Sent()[0].Text)
}

func TestRunOnce_SendFailureKeepsPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001115")
	ok := storetest.NewUser(t, f.store, "whatsapp:+15550001116")
	items := storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	storetest.NewItems(t, f.store, ok.ID, store.TopicDSA, 1)
	f.sender.FailFor = map[string]error{u.Handle: errors.New("twilio 500")}

	stats, err := f.sweeper(Config{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Sent)

	got, err := f.store.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Equal(t, "hook: Concept 1", got.HookText(), "hook persisted before the send")
}

type staleStore struct{ store.Store }

func (staleStore) MarkSent(context.Context, uuid.UUID, time.Time, string) error {
	return store.ErrStale
}

func TestRunOnce_StaleMarkSent(t *testing.T) {
	f := newFixture()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001117")
	storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)

	sw := New(staleStore{f.store}, f.gen, f.sender, logger.Discard(), Config{}, WithClock(func() time.Time { return f.now }))
	stats, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
}

type busyLocker struct{ keys []string }

func (l *busyLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.keys = append(l.keys, key)
	return nil, false, nil
}

func TestRunOnce_LockHeldElsewhere(t *testing.T) {
	f := newFixture()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001118")
	storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	l := &busyLocker{}

	stats, err := f.sweeper(Config{}, WithLocker(l)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Locked)
	assert.Empty(t, f.sender.Sent())
	assert.Equal(t, []string{"dailydev:sweep:2024050109"}, l.keys)
}

func TestRunOnce_ManyUsers(t *testing.T) {
	f := newFixture()
	for i := 0; i < 25; i++ {
		u := storetest.NewUser(t, f.store, fmt.Sprintf("telegram:%d", 1000+i))
		storetest.NewItems(t, f.store, u.ID, store.TopicSystemDesign, 2)
	}

	stats, err := f.sweeper(Config{Workers: 4}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Sent)
	assert.Len(t, f.sender.Sent(), 25)
}

func TestRunOnce_Canceled(t *testing.T) {
	f := newFixture()
	u := storetest.NewUser(t, f.store, "whatsapp:+15550001119")
	storetest.NewItems(t, f.store, u.ID, store.TopicDSA, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sweeper(Config{}).RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.sender.Sent())
}
