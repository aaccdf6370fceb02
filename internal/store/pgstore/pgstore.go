// Package pgstore реализация store.Store на PostgreSQL (pgx).
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dailydev/internal/domain"
	"dailydev/internal/platform/pg"
	"dailydev/internal/store"
)

// Store реализация store.Store.
type Store struct {
	pool *pgxpool.Pool
	tx   *pg.TxRunner
}

var _ store.Store = (*Store)(nil)

// New оборачивает пул; миграции должны быть применены заранее.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, tx: pg.NewTxRunner(pool)}
}

func (s *Store) q(ctx context.Context) pg.Querier { return s.tx.GetQuerier(ctx) }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Persistence("postgres ping", pg.HealthCheckPool(ctx, s.pool))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNoRows(err):
		return store.ErrNotFound
	case pg.IsUniqueViolation(err, ""):
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	case pg.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	default:
		return store.Persistence(op, err)
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// --- users ---

const userCols = `id, handle, channel_status, preferred_hour, timezone, experience_level, skill_summary, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u      domain.User
		status string
	)
	err := row.Scan(&u.ID, &u.Handle, &status, &u.PreferredHour, &u.Timezone, &u.ExperienceLevel, &u.SkillSummary, &u.CreatedAt)
	u.ChannelStatus = domain.ChannelStatus(status)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO users (`+userCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Handle, string(u.ChannelStatus), u.PreferredHour, u.Timezone, u.ExperienceLevel, u.SkillSummary, u.CreatedAt)
	return translate("create user", err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, translate("get user", err)
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE handle = $1`, handle))
	return u, translate("get user by handle", err)
}

func (s *Store) ListReachableUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE channel_status = 'connected' AND handle <> '' ORDER BY id`)
	if err != nil {
		return nil, translate("list reachable users", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.User, error) { return scanUser(r) })
	return out, translate("list reachable users", err)
}

// --- topics ---

func (s *Store) CreateTopic(ctx context.Context, t domain.Topic) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO topics (id, name, slug, description) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.Description)
	return translate("create topic", err)
}

func (s *Store) GetTopic(ctx context.Context, id uuid.UUID) (domain.Topic, error) {
	var t domain.Topic
	err := s.q(ctx).QueryRow(ctx, `SELECT id, name, slug, description FROM topics WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Slug, &t.Description)
	return t, translate("get topic", err)
}

// --- enrollments ---

const enrollmentCols = `id, user_id, topic_id, duration_days, start_date, target_date, status, created_at`

func scanEnrollment(row pgx.Row) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.TopicID, &e.DurationDays, &e.StartDate, &e.TargetDate, &e.Status, &e.CreatedAt)
	return e, err
}

func (s *Store) CreateEnrollment(ctx context.Context, e domain.Enrollment) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO enrollments (`+enrollmentCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.TopicID, e.DurationDays, domain.CivilDate(e.StartDate), domain.CivilDate(e.TargetDate), e.Status, e.CreatedAt)
	if pg.IsUniqueViolation(err, "enrollments_user_topic_key") {
		return fmt.Errorf("create enrollment: already enrolled: %w", store.ErrConflict)
	}
	return translate("create enrollment", err)
}

func (s *Store) GetEnrollment(ctx context.Context, userID, topicID uuid.UUID) (domain.Enrollment, error) {
	e, err := scanEnrollment(s.q(ctx).QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id = $1 AND topic_id = $2`, userID, topicID))
	return e, translate("get enrollment", err)
}

func (s *Store) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]domain.Enrollment, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, translate("list enrollments", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Enrollment, error) { return scanEnrollment(r) })
	return out, translate("list enrollments", err)
}

// --- schedule items ---

const itemCols = `id, user_id, topic_id, day_number, concept_title, concept_slug, difficulty,
	read_time_minutes, scheduled_date, hook, sent_at, responded_at, status, delivery_id, created_at`

const itemOrder = ` ORDER BY day_number, scheduled_date, topic_id`

func scanItem(row pgx.Row) (domain.ScheduleItem, error) {
	var (
		it         domain.ScheduleItem
		diff, stat string
	)
	err := row.Scan(&it.ID, &it.UserID, &it.TopicID, &it.DayNumber, &it.ConceptTitle, &it.ConceptSlug, &diff,
		&it.ReadTimeMinutes, &it.ScheduledDate, &it.Hook, &it.SentAt, &it.RespondedAt, &stat, &it.DeliveryID, &it.CreatedAt)
	it.Difficulty = domain.Difficulty(diff)
	it.Status = domain.Status(stat)
	return it, err
}

func (s *Store) queryItems(ctx context.Context, op, query string, args ...any) ([]domain.ScheduleItem, error) {
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ScheduleItem, error) { return scanItem(r) })
	return out, translate(op, err)
}

// CreateItems вставляет весь план одним batch в транзакции.
func (s *Store) CreateItems(ctx context.Context, items []domain.ScheduleItem) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		batch := &pgx.Batch{}
		for _, it := range items {
			if it.CreatedAt.IsZero() {
				it.CreatedAt = now
			}
			if it.Status == "" {
				it.Status = domain.StatusPending
			}
			batch.Queue(
				`INSERT INTO schedule_items (`+itemCols+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				it.ID, it.UserID, it.TopicID, it.DayNumber, it.ConceptTitle, it.ConceptSlug, string(it.Difficulty),
				it.ReadTimeMinutes, domain.CivilDate(it.ScheduledDate), it.Hook, it.SentAt, it.RespondedAt, string(it.Status),
				it.DeliveryID, it.CreatedAt)
		}
		tx, _ := pg.PgxTx(ctx)
		br := tx.SendBatch(ctx, batch)
		for range items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return translate("create schedule item", err)
			}
		}
		return translate("create schedule items", br.Close())
	})
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (domain.ScheduleItem, error) {
	it, err := scanItem(s.q(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM schedule_items WHERE id = $1`, id))
	return it, translate("get schedule item", err)
}

func (s *Store) ListItems(ctx context.Context, userID, topicID uuid.UUID) ([]domain.ScheduleItem, error) {
	return s.queryItems(ctx, "list schedule items",
		`SELECT `+itemCols+` FROM schedule_items WHERE user_id = $1 AND topic_id = $2`+itemOrder, userID, topicID)
}

func (s *Store) first(ctx context.Context, op, query string, args ...any) (domain.ScheduleItem, error) {
	it, err := scanItem(s.q(ctx).QueryRow(ctx, query, args...))
	return it, translate(op, err)
}

func (s *Store) NextPendingItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "next pending item",
		`SELECT `+itemCols+` FROM schedule_items WHERE user_id = $1 AND status = 'pending'`+itemOrder+` LIMIT 1`, userID)
}

func (s *Store) NextDueItem(ctx context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "next due item",
		`SELECT `+itemCols+` FROM schedule_items
		 WHERE user_id = $1 AND topic_id = $2 AND status IN ('pending', 'sent')`+itemOrder+` LIMIT 1`,
		userID, topicID)
}

func (s *Store) LatestSentItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "latest sent item",
		`SELECT `+itemCols+` FROM schedule_items
		 WHERE user_id = $1 AND status = 'sent' AND sent_at IS NOT NULL
		 ORDER BY sent_at DESC LIMIT 1`, userID)
}

func (s *Store) LastSentAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := s.q(ctx).QueryRow(ctx, `SELECT max(sent_at) FROM schedule_items WHERE user_id = $1`, userID).Scan(&last)
	return last, translate("last sent at", err)
}

// SetHookIfEmpty COALESCE оставляет первый сохранённый хук.
func (s *Store) SetHookIfEmpty(ctx context.Context, itemID uuid.UUID, hook string) (string, error) {
	var stored string
	err := s.q(ctx).QueryRow(ctx,
		`UPDATE schedule_items SET hook = COALESCE(hook, $2) WHERE id = $1 RETURNING hook`, itemID, hook).Scan(&stored)
	return stored, translate("set hook", err)
}

// cas условное обновление; при 0 строк отличает отсутствие элемента от чужого статуса.
func (s *Store) cas(ctx context.Context, op string, itemID uuid.UUID, query string, args ...any) error {
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return translate(op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schedule_items WHERE id = $1)`, itemID).Scan(&exists); err != nil {
		return translate(op, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrStale
}

func (s *Store) MarkSent(ctx context.Context, itemID uuid.UUID, sentAt time.Time, deliveryID string) error {
	var delivery *string
	if deliveryID != "" {
		delivery = &deliveryID
	}
	return s.cas(ctx, "mark sent", itemID,
		`UPDATE schedule_items SET status = 'sent', sent_at = $2, delivery_id = $3
		 WHERE id = $1 AND status = 'pending'`, itemID, sentAt, delivery)
}

func (s *Store) MarkRead(ctx context.Context, itemID uuid.UUID, respondedAt time.Time) error {
	return s.cas(ctx, "mark read", itemID,
		`UPDATE schedule_items SET status = 'read', responded_at = $2 WHERE id = $1 AND status = 'sent'`,
		itemID, respondedAt)
}

func (s *Store) MarkSkipped(ctx context.Context, itemID uuid.UUID) error {
	return s.cas(ctx, "mark skipped", itemID,
		`UPDATE schedule_items SET status = 'skipped' WHERE id = $1 AND status = 'pending'`, itemID)
}

// --- artifacts ---

const artifactCols = `id, schedule_item_id, title, slug, eli5, technical, code_snippets, real_world,
	practice, placeholder, view_count, created_at`

func scanArtifact(row pgx.Row) (domain.Artifact, error) {
	var a domain.Artifact
	err := row.Scan(&a.ID, &a.ScheduleItemID, &a.Title, &a.Slug, &a.ELI5, &a.Technical, &a.CodeSnippets,
		&a.RealWorld, &a.Practice, &a.Placeholder, &a.ViewCount, &a.CreatedAt)
	return a, err
}

// CreateArtifact ON CONFLICT по artifacts_schedule_item_key: при гонке
// двух процессов второй получает уже сохранённую статью.
func (s *Store) CreateArtifact(ctx context.Context, a domain.Artifact) (domain.Artifact, bool, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	tag, err := s.q(ctx).Exec(ctx,
		`INSERT INTO artifacts (`+artifactCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT ON CONSTRAINT artifacts_schedule_item_key DO NOTHING`,
		a.ID, a.ScheduleItemID, a.Title, a.Slug, a.ELI5, a.Technical, nonNil(a.CodeSnippets),
		a.RealWorld, nonNil(a.Practice), a.Placeholder, a.ViewCount, a.CreatedAt)
	if err != nil {
		return domain.Artifact{}, false, translate("create artifact", err)
	}
	stored, err := s.GetArtifactByItem(ctx, a.ScheduleItemID)
	return stored, tag.RowsAffected() == 1, err
}

func (s *Store) GetArtifact(ctx context.Context, id uuid.UUID) (domain.Artifact, error) {
	a, err := scanArtifact(s.q(ctx).QueryRow(ctx, `SELECT `+artifactCols+` FROM artifacts WHERE id = $1`, id))
	return a, translate("get artifact", err)
}

func (s *Store) GetArtifactByItem(ctx context.Context, itemID uuid.UUID) (domain.Artifact, error) {
	a, err := scanArtifact(s.q(ctx).QueryRow(ctx,
		`SELECT `+artifactCols+` FROM artifacts WHERE schedule_item_id = $1`, itemID))
	return a, translate("get artifact by item", err)
}

func (s *Store) IncrementArtifactViews(ctx context.Context, id uuid.UUID) (domain.Artifact, error) {
	a, err := scanArtifact(s.q(ctx).QueryRow(ctx,
		`UPDATE artifacts SET view_count = view_count + 1 WHERE id = $1 RETURNING `+artifactCols, id))
	return a, translate("increment views", err)
}

// --- progress ---

const progressCols = `user_id, topic_id, current_streak, longest_streak, last_activity_date,
	concepts_learned, articles_read, badges, updated_at`

func scanProgress(row pgx.Row) (domain.ProgressRecord, error) {
	var (
		p      domain.ProgressRecord
		badges []string
	)
	err := row.Scan(&p.UserID, &p.TopicID, &p.CurrentStreak, &p.LongestStreak, &p.LastActivityDate,
		&p.ConceptsLearned, &p.ArticlesRead, &badges, &p.UpdatedAt)
	p.Badges = domain.NewBadgeSet(badges...)
	return p, err
}

// GetProgress внутри транзакции берёт строку FOR UPDATE: два ответа одного
// пользователя применяются к сводке по очереди.
func (s *Store) GetProgress(ctx context.Context, userID, topicID uuid.UUID) (domain.ProgressRecord, error) {
	query := `SELECT ` + progressCols + ` FROM progress WHERE user_id = $1 AND topic_id = $2`
	if _, inTx := pg.PgxTx(ctx); inTx {
		query += ` FOR UPDATE`
	}
	p, err := scanProgress(s.q(ctx).QueryRow(ctx, query, userID, topicID))
	return p, translate("get progress", err)
}

func (s *Store) UpsertProgress(ctx context.Context, p domain.ProgressRecord) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO progress (`+progressCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (user_id, topic_id) DO UPDATE SET
		     current_streak = EXCLUDED.current_streak,
		     longest_streak = EXCLUDED.longest_streak,
		     last_activity_date = EXCLUDED.last_activity_date,
		     concepts_learned = EXCLUDED.concepts_learned,
		     articles_read = EXCLUDED.articles_read,
		     badges = EXCLUDED.badges,
		     updated_at = now()`,
		p.UserID, p.TopicID, p.CurrentStreak, p.LongestStreak, p.LastActivityDate,
		p.ConceptsLearned, p.ArticlesRead, p.Badges.Sorted())
	return translate("upsert progress", err)
}

func (s *Store) ListProgress(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+progressCols+` FROM progress WHERE user_id = $1 ORDER BY topic_id`, userID)
	if err != nil {
		return nil, translate("list progress", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ProgressRecord, error) { return scanProgress(r) })
	return out, translate("list progress", err)
}
