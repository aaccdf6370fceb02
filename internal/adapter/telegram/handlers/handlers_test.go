package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/adapter/telegram/handlers"
	"dailydev/internal/domain"
	"dailydev/internal/platform/logger"
	"dailydev/internal/progress"
	"dailydev/internal/store"
)

type fakeClient struct{ texts []string }

func (f *fakeClient) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.texts = append(f.texts, p.Text)
	return &models.Message{ID: len(f.texts)}, nil
}

type fakeService struct {
	users    map[string]domain.User
	summary  progress.Summary
	advanced bool
	err      error
	replies  []string
}

func (f *fakeService) HandleInboundReply(_ context.Context, handle, text string) (bool, error) {
	f.replies = append(f.replies, handle+"|"+text)
	return f.advanced, f.err
}

func (f *fakeService) UserByHandle(_ context.Context, handle string) (domain.User, error) {
	u, ok := f.users[handle]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeService) UserStats(context.Context, uuid.UUID) (progress.Summary, error) {
	return f.summary, nil
}

func update(chat int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{Chat: models.Chat{ID: chat}, Text: text}}
}

func TestStart(t *testing.T) {
	svc := &fakeService{users: map[string]domain.User{
		"telegram:7": {ID: uuid.New(), Handle: "telegram:7", ChannelStatus: domain.ChannelConnected, PreferredHour: 8, Timezone: "Europe/Berlin"},
	}}
	h := handlers.New(svc, logger.Discard())
	c := &fakeClient{}

	h.Handle(context.Background(), c, update(42, "/start"))
	h.Handle(context.Background(), c, update(7, "/start@dailydev_bot"))

	require.Len(t, c.texts, 2)
	assert.Contains(t, c.texts[0], "telegram:42")
	assert.Contains(t, c.texts[1], "08:00 (Europe/Berlin)")
}

func TestStats(t *testing.T) {
	svc := &fakeService{
		users:   map[string]domain.User{"telegram:7": {ID: uuid.New()}},
		summary: progress.Summary{CurrentStreak: 7, LongestStreak: 9, ConceptsLearned: 12, Badges: []string{"7-day-streak"}},
	}
	h := handlers.New(svc, logger.Discard())
	c := &fakeClient{}

	h.Handle(context.Background(), c, update(7, "/stats"))
	h.Handle(context.Background(), c, update(8, "/stats"))

	require.Len(t, c.texts, 2)
	assert.Equal(t, "🔥 Current streak: 7 days\n🏆 Longest streak: 9 days\n📖 Concepts learned: 12\n🏅 Badges: 7-day-streak", c.texts[0])
	assert.Contains(t, c.texts[1], "/start")
}

func TestReply(t *testing.T) {
	svc := &fakeService{}
	h := handlers.New(svc, logger.Discard())
	c := &fakeClient{}

	h.Handle(context.Background(), c, update(5, "maybe later"))
	assert.Empty(t, c.texts)

	h.Handle(context.Background(), c, update(5, "yes"))
	require.Len(t, c.texts, 1)
	assert.Contains(t, c.texts[0], "Nothing is waiting")

	svc.advanced = true
	h.Handle(context.Background(), c, update(5, "YES"))
	assert.Len(t, c.texts, 1, "link is sent by the core")

	svc.err = errors.New("db down")
	h.Handle(context.Background(), c, update(5, "yes"))
	require.Len(t, c.texts, 2)
	assert.Contains(t, c.texts[1], "went wrong")

	assert.Equal(t, []string{"telegram:5|maybe later", "telegram:5|yes", "telegram:5|YES", "telegram:5|yes"}, svc.replies)
}

func TestPing(t *testing.T) {
	c := &fakeClient{}
	handlers.New(&fakeService{}, logger.Discard()).Handle(context.Background(), c, update(1, "/ping"))
	assert.Equal(t, []string{"pong"}, c.texts)
}
