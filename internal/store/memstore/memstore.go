// Package memstore хранилище в памяти для локального запуска без базы и тестов.
//
// WithinTx сериализует транзакции и откатывает изменения по снимку состояния.
// Записи вне транзакции во время чужой транзакции будут потеряны при её откате,
// поэтому для конкурентной нагрузки нужен sqlitestore или pgstore.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/domain"
	"dailydev/internal/store"
)

type txKey struct{}

type state struct {
	users       map[uuid.UUID]domain.User
	topics      map[uuid.UUID]domain.Topic
	enrollments map[uuid.UUID]domain.Enrollment
	items       map[uuid.UUID]domain.ScheduleItem
	artifacts   map[uuid.UUID]domain.Artifact
	progress    map[[2]uuid.UUID]domain.ProgressRecord
}

func newState() state {
	return state{
		users:       make(map[uuid.UUID]domain.User),
		topics:      make(map[uuid.UUID]domain.Topic),
		enrollments: make(map[uuid.UUID]domain.Enrollment),
		items:       make(map[uuid.UUID]domain.ScheduleItem),
		artifacts:   make(map[uuid.UUID]domain.Artifact),
		progress:    make(map[[2]uuid.UUID]domain.ProgressRecord),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.topics {
		c.topics[k] = v
	}
	for k, v := range s.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.artifacts {
		c.artifacts[k] = v
	}
	for k, v := range s.progress {
		v.Badges = v.Badges.Clone()
		c.progress[k] = v
	}
	return c
}

// Store реализация store.Store в памяти.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New пустое хранилище с темами DSA и System Design, как после миграций.
func New() *Store {
	s := &Store{st: newState(), now: time.Now}
	s.st.topics[store.TopicDSA] = domain.Topic{ID: store.TopicDSA, Name: "DSA", Slug: "dsa", Description: "Data structures and algorithms for coding interviews"}
	s.st.topics[store.TopicSystemDesign] = domain.Topic{ID: store.TopicSystemDesign, Name: "System Design", Slug: "system-design", Description: "Designing scalable distributed systems"}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// WithinTx implements store.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[u.ID]; ok {
		return store.ErrConflict
	}
	for _, other := range s.st.users {
		if other.Handle == u.Handle {
			return store.ErrConflict
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.st.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByHandle(_ context.Context, handle string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.st.users {
		if u.Handle == handle {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) ListReachableUsers(context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, u := range s.st.users {
		if u.Reachable() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) CreateTopic(_ context.Context, t domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.st.topics {
		if other.ID == t.ID || other.Name == t.Name || other.Slug == t.Slug {
			return store.ErrConflict
		}
	}
	s.st.topics[t.ID] = t
	return nil
}

func (s *Store) GetTopic(_ context.Context, id uuid.UUID) (domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.st.topics[id]
	if !ok {
		return domain.Topic{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) CreateEnrollment(_ context.Context, e domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.st.enrollments {
		if other.ID == e.ID || (other.UserID == e.UserID && other.TopicID == e.TopicID) {
			return store.ErrConflict
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.StartDate = domain.CivilDate(e.StartDate)
	e.TargetDate = domain.CivilDate(e.TargetDate)
	s.st.enrollments[e.ID] = e
	return nil
}

func (s *Store) GetEnrollment(_ context.Context, userID, topicID uuid.UUID) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.st.enrollments {
		if e.UserID == userID && e.TopicID == topicID {
			return e, nil
		}
	}
	return domain.Enrollment{}, store.ErrNotFound
}

func (s *Store) ListEnrollments(_ context.Context, userID uuid.UUID) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Enrollment
	for _, e := range s.st.enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateItems(_ context.Context, items []domain.ScheduleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[[2]uuid.UUID]map[int]bool)
	for _, it := range s.st.items {
		k := [2]uuid.UUID{it.UserID, it.TopicID}
		if seen[k] == nil {
			seen[k] = make(map[int]bool)
		}
		seen[k][it.DayNumber] = true
	}
	for _, it := range items {
		k := [2]uuid.UUID{it.UserID, it.TopicID}
		if _, ok := s.st.items[it.ID]; ok || seen[k][it.DayNumber] {
			return store.ErrConflict
		}
		if seen[k] == nil {
			seen[k] = make(map[int]bool)
		}
		seen[k][it.DayNumber] = true
	}
	now := s.now().UTC()
	for _, it := range items {
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		if it.Status == "" {
			it.Status = domain.StatusPending
		}
		it.ScheduledDate = domain.CivilDate(it.ScheduledDate)
		s.st.items[it.ID] = it
	}
	return nil
}

func (s *Store) GetItem(_ context.Context, id uuid.UUID) (domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.st.items[id]
	if !ok {
		return domain.ScheduleItem{}, store.ErrNotFound
	}
	return it, nil
}

func (s *Store) filterItems(keep func(domain.ScheduleItem) bool) []domain.ScheduleItem {
	var out []domain.ScheduleItem
	for _, it := range s.st.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayNumber != b.DayNumber {
			return a.DayNumber < b.DayNumber
		}
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		return a.TopicID.String() < b.TopicID.String()
	})
	return out
}

func (s *Store) ListItems(_ context.Context, userID, topicID uuid.UUID) ([]domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterItems(func(it domain.ScheduleItem) bool {
		return it.UserID == userID && it.TopicID == topicID
	}), nil
}

func (s *Store) NextPendingItem(_ context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.filterItems(func(it domain.ScheduleItem) bool {
		return it.UserID == userID && it.Status == domain.StatusPending
	})
	if len(items) == 0 {
		return domain.ScheduleItem{}, store.ErrNotFound
	}
	return items[0], nil
}

func (s *Store) NextDueItem(_ context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.filterItems(func(it domain.ScheduleItem) bool {
		return it.UserID == userID && it.TopicID == topicID &&
			(it.Status == domain.StatusPending || it.Status == domain.StatusSent)
	})
	if len(items) == 0 {
		return domain.ScheduleItem{}, store.ErrNotFound
	}
	return items[0], nil
}

func (s *Store) LatestSentItem(_ context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  domain.ScheduleItem
		found bool
	)
	for _, it := range s.st.items {
		if it.UserID != userID || it.Status != domain.StatusSent || it.SentAt == nil {
			continue
		}
		if !found || it.SentAt.After(*best.SentAt) {
			best, found = it, true
		}
	}
	if !found {
		return domain.ScheduleItem{}, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) LastSentAt(_ context.Context, userID uuid.UUID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *time.Time
	for _, it := range s.st.items {
		if it.UserID == userID && it.SentAt != nil && (last == nil || it.SentAt.After(*last)) {
			t := *it.SentAt
			last = &t
		}
	}
	return last, nil
}

func (s *Store) SetHookIfEmpty(_ context.Context, itemID uuid.UUID, hook string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.st.items[itemID]
	if !ok {
		return "", store.ErrNotFound
	}
	if it.Hook == nil {
		h := hook
		it.Hook = &h
		s.st.items[itemID] = it
	}
	return *it.Hook, nil
}

// transition общий compare-and-set для переходов статуса.
func (s *Store) transition(itemID uuid.UUID, from, to domain.Status, apply func(*domain.ScheduleItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.st.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if it.Status != from || !from.CanTransition(to) {
		return store.ErrStale
	}
	it.Status = to
	if apply != nil {
		apply(&it)
	}
	s.st.items[itemID] = it
	return nil
}

func (s *Store) MarkSent(_ context.Context, itemID uuid.UUID, sentAt time.Time, deliveryID string) error {
	return s.transition(itemID, domain.StatusPending, domain.StatusSent, func(it *domain.ScheduleItem) {
		t := sentAt.UTC()
		it.SentAt = &t
		if deliveryID != "" {
			d := deliveryID
			it.DeliveryID = &d
		}
	})
}

func (s *Store) MarkRead(_ context.Context, itemID uuid.UUID, respondedAt time.Time) error {
	return s.transition(itemID, domain.StatusSent, domain.StatusRead, func(it *domain.ScheduleItem) {
		t := respondedAt.UTC()
		it.RespondedAt = &t
	})
}

func (s *Store) MarkSkipped(_ context.Context, itemID uuid.UUID) error {
	return s.transition(itemID, domain.StatusPending, domain.StatusSkipped, nil)
}

func (s *Store) CreateArtifact(_ context.Context, a domain.Artifact) (domain.Artifact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.items[a.ScheduleItemID]; !ok {
		return domain.Artifact{}, false, store.ErrNotFound
	}
	for _, existing := range s.st.artifacts {
		if existing.ScheduleItemID == a.ScheduleItemID {
			return existing, false, nil
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	a.CodeSnippets = slices.Clone(a.CodeSnippets)
	a.Practice = slices.Clone(a.Practice)
	s.st.artifacts[a.ID] = a
	return a, true, nil
}

func (s *Store) GetArtifact(_ context.Context, id uuid.UUID) (domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.st.artifacts[id]
	if !ok {
		return domain.Artifact{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetArtifactByItem(_ context.Context, itemID uuid.UUID) (domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.st.artifacts {
		if a.ScheduleItemID == itemID {
			return a, nil
		}
	}
	return domain.Artifact{}, store.ErrNotFound
}

func (s *Store) IncrementArtifactViews(_ context.Context, id uuid.UUID) (domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.artifacts[id]
	if !ok {
		return domain.Artifact{}, store.ErrNotFound
	}
	a.ViewCount++
	s.st.artifacts[id] = a
	return a, nil
}

func (s *Store) GetProgress(_ context.Context, userID, topicID uuid.UUID) (domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.progress[[2]uuid.UUID{userID, topicID}]
	if !ok {
		return domain.ProgressRecord{}, store.ErrNotFound
	}
	p.Badges = p.Badges.Clone()
	return p, nil
}

func (s *Store) UpsertProgress(_ context.Context, p domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Badges == nil {
		p.Badges = domain.NewBadgeSet()
	} else {
		p.Badges = p.Badges.Clone()
	}
	p.UpdatedAt = s.now().UTC()
	s.st.progress[[2]uuid.UUID{p.UserID, p.TopicID}] = p
	return nil
}

func (s *Store) ListProgress(_ context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ProgressRecord
	for k, p := range s.st.progress {
		if k[0] == userID {
			p.Badges = p.Badges.Clone()
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID.String() < out[j].TopicID.String() })
	return out, nil
}
