// Package dispatch ежечасный обход пользователей и отправка концепта дня.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dailydev/internal/content"
	"dailydev/internal/domain"
	"dailydev/internal/messaging"
	"dailydev/internal/platform/logger"
	"dailydev/internal/shared"
	"dailydev/internal/store"
)

// Locker не даёт двум процессам обходить пользователей в одном часе.
type Locker interface {
	// TryLock возвращает ok=false, если ключ уже занят.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NopLocker всегда выдаёт блокировку; для одного процесса.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// SweepStats итог одного обхода.
type SweepStats struct {
	Candidates int           `json:"candidates"`
	Matched    int           `json:"matched"`
	Sent       int           `json:"sent"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Locked     bool          `json:"locked,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type outcome int

const (
	notDue outcome = iota
	skipped
	sent
	failed
)

// Config параметры обхода.
type Config struct {
	Policy      domain.HourPolicy
	Workers     int
	UserTimeout time.Duration
	CallTimeout time.Duration
	LockTTL     time.Duration
}

// DefaultConfig 8 воркеров, 2 минуты на пользователя, 30 секунд на внешний вызов.
func DefaultConfig() Config {
	return Config{
		Policy:      domain.HourPolicyLocal,
		Workers:     8,
		UserTimeout: 2 * time.Minute,
		CallTimeout: 30 * time.Second,
		LockTTL:     55 * time.Minute,
	}
}

// Sweeper рассылает хуки пользователям, у которых наступил их час.
type Sweeper struct {
	store  store.Store
	gen    content.Generator
	sender messaging.Sender
	locker Locker
	log    *slog.Logger
	cfg    Config
	now    func() time.Time
}

// Option настраивает Sweeper.
type Option func(*Sweeper)

func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.locker = l
		}
	}
}

// New создаёт Sweeper; нулевые поля cfg берутся из DefaultConfig.
func New(st store.Store, gen content.Generator, sender messaging.Sender, log *slog.Logger, cfg Config, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = def.UserTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	s := &Sweeper{
		store:  st,
		gen:    gen,
		sender: sender,
		locker: NopLocker{},
		log:    log.With("component", "sweeper"),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunOnce один обход. Ошибки отдельных пользователей учитываются в
// статистике и не прерывают обход; возвращается только ошибка выборки
// кандидатов, блокировки или отмена контекста.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepStats, error) {
	start := s.now()
	began := time.Now()
	var stats SweepStats

	key := "dailydev:sweep:" + start.UTC().Format("2006010215")
	release, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return stats, shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), "acquire sweep lock")
	}
	if !ok {
		s.log.Info("sweep already running elsewhere", "key", key)
		stats.Locked = true
		return stats, nil
	}
	defer release()

	users, err := s.store.ListReachableUsers(ctx)
	if err != nil {
		return stats, shared.Wrap(err, "list reachable users")
	}
	stats.Candidates = len(users)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := s.safeProcessUser(ctx, u, start)
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case skipped:
				stats.Matched++
				stats.Skipped++
			case sent:
				stats.Matched++
				stats.Sent++
			case failed:
				stats.Matched++
				stats.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	stats.Duration = time.Since(began)

	s.log.Info("sweep finished",
		"candidates", stats.Candidates, "matched", stats.Matched, "sent", stats.Sent,
		"skipped", stats.Skipped, "failed", stats.Failed, "dur", stats.Duration)
	if err := ctx.Err(); err != nil {
		return stats, shared.Wrap(err, "sweep interrupted")
	}
	return stats, nil
}

// safeProcessUser паника одного пользователя засчитывается как failed,
// остальные продолжают обход.
func (s *Sweeper) safeProcessUser(ctx context.Context, u domain.User, now time.Time) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("user processing panicked", "user_id", u.ID, "panic", r)
			res = failed
		}
	}()
	return s.processUser(ctx, u, now)
}

func (s *Sweeper) processUser(ctx context.Context, u domain.User, now time.Time) outcome {
	loc, known := s.cfg.Policy.Location(u)
	if !known {
		s.log.Warn("unknown timezone, using UTC", "user_id", u.ID, "tz", u.Timezone)
	}
	if now.In(loc).Hour() != u.PreferredHour {
		return notDue
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UserTimeout)
	defer cancel()
	log := s.log.With("user_id", u.ID, "handle", logger.MaskHandle(u.Handle))

	item, err := s.store.NextPendingItem(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug("no pending items")
		return skipped
	}
	if err != nil {
		log.Error("load next item", "err", err)
		return failed
	}
	log = log.With("item_id", item.ID, "day", item.DayNumber)

	if item.SentOn(now, loc) {
		log.Debug("item already sent today")
		return skipped
	}
	last, err := s.store.LastSentAt(ctx, u.ID)
	if err != nil {
		log.Error("load last send", "err", err)
		return failed
	}
	if last != nil && domain.TodayIn(*last, loc).Equal(domain.TodayIn(now, loc)) {
		log.Debug("user already received a concept today")
		return skipped
	}

	hook := s.ensureHook(ctx, log, u, item)

	sctx, scancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	deliveryID, err := s.sender.SendMessage(sctx, u.Handle, hook)
	scancel()
	if err != nil {
		log.Warn("send failed, item stays pending", "err", err)
		return failed
	}

	switch err := s.store.MarkSent(ctx, item.ID, now, deliveryID); {
	case errors.Is(err, store.ErrStale):
		log.Warn("item changed concurrently, send not recorded", "delivery_id", deliveryID)
		return skipped
	case err != nil:
		log.Error("mark sent", "err", err, "delivery_id", deliveryID)
		return failed
	}
	log.Info("concept sent", "delivery_id", deliveryID)
	return sent
}

// ensureHook возвращает сохранённый хук, генерирует и сохраняет новый или,
// если генерация не удалась, отдаёт запасной текст без сохранения.
func (s *Sweeper) ensureHook(ctx context.Context, log *slog.Logger, u domain.User, item domain.ScheduleItem) string {
	if h := item.HookText(); h != "" {
		return h
	}
	fallback := content.FallbackHook(item.ConceptTitle)
	if s.gen == nil {
		return fallback
	}

	topic, err := s.store.GetTopic(ctx, item.TopicID)
	if err != nil {
		log.Warn("load topic for hook", "err", err)
		return fallback
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	text, err := s.gen.GenerateHookText(gctx, content.HookRequest{
		Topic:      topic.Name,
		Concept:    item.ConceptTitle,
		Difficulty: item.Difficulty,
		UserLevel:  u.ExperienceLevel,
	})
	cancel()
	if err == nil {
		text, err = content.CleanHook(text)
	}
	if err != nil {
		log.Warn("hook generation failed, sending fallback", "err", err)
		return fallback
	}

	stored, err := s.store.SetHookIfEmpty(ctx, item.ID, text)
	if err != nil {
		log.Warn("persist hook", "err", err)
		return text
	}
	return stored
}
