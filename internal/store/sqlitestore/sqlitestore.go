// Package sqlitestore реализация store.Store поверх SQLite.
//
// Время хранится текстом фиксированной ширины в UTC, поэтому сортировка
// строк совпадает с хронологической. Календарные даты хранятся как YYYY-MM-DD.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/domain"
	"dailydev/internal/platform/sqlite"
	"dailydev/internal/store"
)

const (
	tsLayout   = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

// Store реализация store.Store.
type Store struct {
	db *sql.DB
	tx *sqlite.TxRunner
}

var _ store.Store = (*Store)(nil)

// New оборачивает открытую базу с применёнными миграциями.
func New(db *sql.DB) *Store {
	return &Store{db: db, tx: sqlite.NewTxRunner(db)}
}

func (s *Store) q(ctx context.Context) sqlite.Querier { return s.tx.GetQuerier(ctx) }

// WithinTx implements store.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Persistence("sqlite ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error { return s.db.Close() }

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func date(t time.Time) string { return domain.CivilDate(t).Format(dateLayout) }

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return date(*t)
}

func parseTS(s string) (time.Time, error) { return time.Parse(tsLayout, s) }

func parseDate(s string) (time.Time, error) { return time.Parse(dateLayout, s) }

func parseNullTS(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTS(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// translate приводит ошибку драйвера к ошибкам store.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case sqlite.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	default:
		return store.Persistence(op, err)
	}
}

type scanner interface{ Scan(dest ...any) error }

// --- users ---

const userCols = `id, handle, channel_status, preferred_hour, timezone, experience_level, skill_summary, created_at`

func scanUser(row scanner) (domain.User, error) {
	var (
		u           domain.User
		id, created string
		status      string
		skills      sql.NullString
	)
	if err := row.Scan(&id, &u.Handle, &status, &u.PreferredHour, &u.Timezone, &u.ExperienceLevel, &skills, &created); err != nil {
		return domain.User{}, notFound(err)
	}
	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return domain.User{}, err
	}
	if u.CreatedAt, err = parseTS(created); err != nil {
		return domain.User{}, err
	}
	u.ChannelStatus = domain.ChannelStatus(status)
	u.SkillSummary = nullString(skills)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Handle, string(u.ChannelStatus), u.PreferredHour, u.Timezone, u.ExperienceLevel, u.SkillSummary, ts(u.CreatedAt))
	return translate("create user", err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id.String()))
	return u, translate("get user", err)
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE handle = ?`, handle))
	return u, translate("get user by handle", err)
}

func (s *Store) ListReachableUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE channel_status = 'connected' AND handle <> '' ORDER BY id`)
	if err != nil {
		return nil, translate("list reachable users", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translate("scan user", err)
		}
		out = append(out, u)
	}
	return out, translate("list reachable users", rows.Err())
}

// --- topics ---

func (s *Store) CreateTopic(ctx context.Context, t domain.Topic) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO topics (id, name, slug, description) VALUES (?, ?, ?, ?)`,
		t.ID.String(), t.Name, t.Slug, t.Description)
	return translate("create topic", err)
}

func (s *Store) GetTopic(ctx context.Context, id uuid.UUID) (domain.Topic, error) {
	var (
		t   domain.Topic
		tid string
	)
	err := s.q(ctx).QueryRowContext(ctx, `SELECT id, name, slug, description FROM topics WHERE id = ?`, id.String()).
		Scan(&tid, &t.Name, &t.Slug, &t.Description)
	if err != nil {
		return domain.Topic{}, translate("get topic", err)
	}
	t.ID, err = uuid.Parse(tid)
	return t, err
}

// --- enrollments ---

const enrollmentCols = `id, user_id, topic_id, duration_days, start_date, target_date, status, created_at`

func scanEnrollment(row scanner) (domain.Enrollment, error) {
	var (
		e                           domain.Enrollment
		id, uid, tid, start, target string
		created                     string
	)
	if err := row.Scan(&id, &uid, &tid, &e.DurationDays, &start, &target, &e.Status, &created); err != nil {
		return domain.Enrollment{}, notFound(err)
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return e, err
	}
	if e.UserID, err = uuid.Parse(uid); err != nil {
		return e, err
	}
	if e.TopicID, err = uuid.Parse(tid); err != nil {
		return e, err
	}
	if e.StartDate, err = parseDate(start); err != nil {
		return e, err
	}
	if e.TargetDate, err = parseDate(target); err != nil {
		return e, err
	}
	e.CreatedAt, err = parseTS(created)
	return e, err
}

func (s *Store) CreateEnrollment(ctx context.Context, e domain.Enrollment) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO enrollments (`+enrollmentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID.String(), e.TopicID.String(), e.DurationDays,
		date(e.StartDate), date(e.TargetDate), e.Status, ts(e.CreatedAt))
	return translate("create enrollment", err)
}

func (s *Store) GetEnrollment(ctx context.Context, userID, topicID uuid.UUID) (domain.Enrollment, error) {
	e, err := scanEnrollment(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id = ? AND topic_id = ?`, userID.String(), topicID.String()))
	return e, translate("get enrollment", err)
}

func (s *Store) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]domain.Enrollment, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE user_id = ? ORDER BY created_at`, userID.String())
	if err != nil {
		return nil, translate("list enrollments", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, translate("scan enrollment", err)
		}
		out = append(out, e)
	}
	return out, translate("list enrollments", rows.Err())
}

// --- schedule items ---

const itemCols = `id, user_id, topic_id, day_number, concept_title, concept_slug, difficulty,
	read_time_minutes, scheduled_date, hook, sent_at, responded_at, status, delivery_id, created_at`

const itemOrder = ` ORDER BY day_number, scheduled_date, topic_id`

func scanItem(row scanner) (domain.ScheduleItem, error) {
	var (
		it                              domain.ScheduleItem
		id, uid, tid, diff, sched, stat string
		created                         string
		hook, sent, responded, delivery sql.NullString
	)
	err := row.Scan(&id, &uid, &tid, &it.DayNumber, &it.ConceptTitle, &it.ConceptSlug, &diff,
		&it.ReadTimeMinutes, &sched, &hook, &sent, &responded, &stat, &delivery, &created)
	if err != nil {
		return domain.ScheduleItem{}, notFound(err)
	}
	if it.ID, err = uuid.Parse(id); err != nil {
		return it, err
	}
	if it.UserID, err = uuid.Parse(uid); err != nil {
		return it, err
	}
	if it.TopicID, err = uuid.Parse(tid); err != nil {
		return it, err
	}
	if it.ScheduledDate, err = parseDate(sched); err != nil {
		return it, err
	}
	if it.SentAt, err = parseNullTS(sent); err != nil {
		return it, err
	}
	if it.RespondedAt, err = parseNullTS(responded); err != nil {
		return it, err
	}
	if it.CreatedAt, err = parseTS(created); err != nil {
		return it, err
	}
	it.Difficulty = domain.Difficulty(diff)
	it.Status = domain.Status(stat)
	it.Hook = nullString(hook)
	it.DeliveryID = nullString(delivery)
	return it, nil
}

func (s *Store) queryItems(ctx context.Context, op, query string, args ...any) ([]domain.ScheduleItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []domain.ScheduleItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, it)
	}
	return out, translate(op, rows.Err())
}

func (s *Store) CreateItems(ctx context.Context, items []domain.ScheduleItem) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		for _, it := range items {
			if it.CreatedAt.IsZero() {
				it.CreatedAt = now
			}
			if it.Status == "" {
				it.Status = domain.StatusPending
			}
			_, err := s.q(ctx).ExecContext(ctx,
				`INSERT INTO schedule_items (`+itemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				it.ID.String(), it.UserID.String(), it.TopicID.String(), it.DayNumber, it.ConceptTitle, it.ConceptSlug,
				string(it.Difficulty), it.ReadTimeMinutes, date(it.ScheduledDate), it.Hook, nullTS(it.SentAt),
				nullTS(it.RespondedAt), string(it.Status), it.DeliveryID, ts(it.CreatedAt))
			if err != nil {
				return translate("create schedule item", err)
			}
		}
		return nil
	})
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (domain.ScheduleItem, error) {
	it, err := scanItem(s.q(ctx).QueryRowContext(ctx, `SELECT `+itemCols+` FROM schedule_items WHERE id = ?`, id.String()))
	return it, translate("get schedule item", err)
}

func (s *Store) ListItems(ctx context.Context, userID, topicID uuid.UUID) ([]domain.ScheduleItem, error) {
	return s.queryItems(ctx, "list schedule items",
		`SELECT `+itemCols+` FROM schedule_items WHERE user_id = ? AND topic_id = ?`+itemOrder,
		userID.String(), topicID.String())
}

func (s *Store) first(ctx context.Context, op, query string, args ...any) (domain.ScheduleItem, error) {
	it, err := scanItem(s.q(ctx).QueryRowContext(ctx, query, args...))
	return it, translate(op, err)
}

func (s *Store) NextPendingItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "next pending item",
		`SELECT `+itemCols+` FROM schedule_items WHERE user_id = ? AND status = 'pending'`+itemOrder+` LIMIT 1`,
		userID.String())
}

func (s *Store) NextDueItem(ctx context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "next due item",
		`SELECT `+itemCols+` FROM schedule_items
		 WHERE user_id = ? AND topic_id = ? AND status IN ('pending', 'sent')`+itemOrder+` LIMIT 1`,
		userID.String(), topicID.String())
}

func (s *Store) LatestSentItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error) {
	return s.first(ctx, "latest sent item",
		`SELECT `+itemCols+` FROM schedule_items
		 WHERE user_id = ? AND status = 'sent' AND sent_at IS NOT NULL
		 ORDER BY sent_at DESC LIMIT 1`,
		userID.String())
}

func (s *Store) LastSentAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var last sql.NullString
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT MAX(sent_at) FROM schedule_items WHERE user_id = ?`, userID.String()).Scan(&last)
	if err != nil {
		return nil, translate("last sent at", err)
	}
	return parseNullTS(last)
}

func (s *Store) SetHookIfEmpty(ctx context.Context, itemID uuid.UUID, hook string) (string, error) {
	var stored string
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx,
			`UPDATE schedule_items SET hook = ? WHERE id = ? AND hook IS NULL`, hook, itemID.String()); err != nil {
			return translate("set hook", err)
		}
		var h sql.NullString
		if err := s.q(ctx).QueryRowContext(ctx, `SELECT hook FROM schedule_items WHERE id = ?`, itemID.String()).Scan(&h); err != nil {
			return translate("get hook", err)
		}
		stored = h.String
		return nil
	})
	return stored, err
}

// cas выполняет условное обновление и отличает отсутствие строки от чужого статуса.
func (s *Store) cas(ctx context.Context, op string, itemID uuid.UUID, query string, args ...any) error {
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(op, err)
	}
	if n == 1 {
		return nil
	}
	var one int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM schedule_items WHERE id = ?`, itemID.String()).Scan(&one); err != nil {
		return translate(op, err)
	}
	return store.ErrStale
}

func (s *Store) MarkSent(ctx context.Context, itemID uuid.UUID, sentAt time.Time, deliveryID string) error {
	var delivery any
	if deliveryID != "" {
		delivery = deliveryID
	}
	return s.cas(ctx, "mark sent", itemID,
		`UPDATE schedule_items SET status = 'sent', sent_at = ?, delivery_id = ?
		 WHERE id = ? AND status = 'pending'`,
		ts(sentAt), delivery, itemID.String())
}

func (s *Store) MarkRead(ctx context.Context, itemID uuid.UUID, respondedAt time.Time) error {
	return s.cas(ctx, "mark read", itemID,
		`UPDATE schedule_items SET status = 'read', responded_at = ? WHERE id = ? AND status = 'sent'`,
		ts(respondedAt), itemID.String())
}

func (s *Store) MarkSkipped(ctx context.Context, itemID uuid.UUID) error {
	return s.cas(ctx, "mark skipped", itemID,
		`UPDATE schedule_items SET status = 'skipped' WHERE id = ? AND status = 'pending'`, itemID.String())
}

// --- artifacts ---

const artifactCols = `id, schedule_item_id, title, slug, eli5, technical, code_snippets, real_world,
	practice, placeholder, view_count, created_at`

func scanArtifact(row scanner) (domain.Artifact, error) {
	var (
		a                   domain.Artifact
		id, itemID, created string
		snippets, practice  string
	)
	err := row.Scan(&id, &itemID, &a.Title, &a.Slug, &a.ELI5, &a.Technical, &snippets, &a.RealWorld,
		&practice, &a.Placeholder, &a.ViewCount, &created)
	if err != nil {
		return domain.Artifact{}, notFound(err)
	}
	if a.ID, err = uuid.Parse(id); err != nil {
		return a, err
	}
	if a.ScheduleItemID, err = uuid.Parse(itemID); err != nil {
		return a, err
	}
	if err = json.Unmarshal([]byte(snippets), &a.CodeSnippets); err != nil {
		return a, fmt.Errorf("decode code_snippets: %w", err)
	}
	if err = json.Unmarshal([]byte(practice), &a.Practice); err != nil {
		return a, fmt.Errorf("decode practice: %w", err)
	}
	a.CreatedAt, err = parseTS(created)
	return a, err
}

func jsonList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (s *Store) CreateArtifact(ctx context.Context, a domain.Artifact) (domain.Artifact, bool, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	snippets, err := jsonList(a.CodeSnippets)
	if err != nil {
		return domain.Artifact{}, false, err
	}
	practice, err := jsonList(a.Practice)
	if err != nil {
		return domain.Artifact{}, false, err
	}

	var (
		stored  domain.Artifact
		created bool
	)
	err = s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.q(ctx).ExecContext(ctx,
			`INSERT INTO artifacts (`+artifactCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (schedule_item_id) DO NOTHING`,
			a.ID.String(), a.ScheduleItemID.String(), a.Title, a.Slug, a.ELI5, a.Technical, snippets,
			a.RealWorld, practice, a.Placeholder, a.ViewCount, ts(a.CreatedAt))
		if err != nil {
			if isForeignKey(err) {
				return store.ErrNotFound
			}
			return translate("create artifact", err)
		}
		n, _ := res.RowsAffected()
		created = n == 1
		stored, err = s.GetArtifactByItem(ctx, a.ScheduleItemID)
		return err
	})
	return stored, created, err
}

func (s *Store) GetArtifact(ctx context.Context, id uuid.UUID) (domain.Artifact, error) {
	a, err := scanArtifact(s.q(ctx).QueryRowContext(ctx, `SELECT `+artifactCols+` FROM artifacts WHERE id = ?`, id.String()))
	return a, translate("get artifact", err)
}

func (s *Store) GetArtifactByItem(ctx context.Context, itemID uuid.UUID) (domain.Artifact, error) {
	a, err := scanArtifact(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+artifactCols+` FROM artifacts WHERE schedule_item_id = ?`, itemID.String()))
	return a, translate("get artifact by item", err)
}

func (s *Store) IncrementArtifactViews(ctx context.Context, id uuid.UUID) (domain.Artifact, error) {
	var a domain.Artifact
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.q(ctx).ExecContext(ctx, `UPDATE artifacts SET view_count = view_count + 1 WHERE id = ?`, id.String())
		if err != nil {
			return translate("increment views", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		a, err = s.GetArtifact(ctx, id)
		return err
	})
	return a, err
}

// --- progress ---

const progressCols = `user_id, topic_id, current_streak, longest_streak, last_activity_date,
	concepts_learned, articles_read, badges, updated_at`

func scanProgress(row scanner) (domain.ProgressRecord, error) {
	var (
		p                     domain.ProgressRecord
		uid, tid, badges, upd string
		last                  sql.NullString
	)
	err := row.Scan(&uid, &tid, &p.CurrentStreak, &p.LongestStreak, &last, &p.ConceptsLearned, &p.ArticlesRead, &badges, &upd)
	if err != nil {
		return domain.ProgressRecord{}, notFound(err)
	}
	if p.UserID, err = uuid.Parse(uid); err != nil {
		return p, err
	}
	if p.TopicID, err = uuid.Parse(tid); err != nil {
		return p, err
	}
	if last.Valid {
		d, err := parseDate(last.String)
		if err != nil {
			return p, err
		}
		p.LastActivityDate = &d
	}
	var list []string
	if err := json.Unmarshal([]byte(badges), &list); err != nil {
		return p, fmt.Errorf("decode badges: %w", err)
	}
	p.Badges = domain.NewBadgeSet(list...)
	p.UpdatedAt, err = parseTS(upd)
	return p, err
}

// GetProgress в SQLite блокировка строки не нужна: пишущие транзакции
// начинаются с BEGIN IMMEDIATE и выполняются по одной.
func (s *Store) GetProgress(ctx context.Context, userID, topicID uuid.UUID) (domain.ProgressRecord, error) {
	p, err := scanProgress(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+progressCols+` FROM progress WHERE user_id = ? AND topic_id = ?`, userID.String(), topicID.String()))
	return p, translate("get progress", err)
}

func (s *Store) UpsertProgress(ctx context.Context, p domain.ProgressRecord) error {
	badges, err := jsonList(p.Badges.Sorted())
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO progress (`+progressCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, topic_id) DO UPDATE SET
		     current_streak = excluded.current_streak,
		     longest_streak = excluded.longest_streak,
		     last_activity_date = excluded.last_activity_date,
		     concepts_learned = excluded.concepts_learned,
		     articles_read = excluded.articles_read,
		     badges = excluded.badges,
		     updated_at = excluded.updated_at`,
		p.UserID.String(), p.TopicID.String(), p.CurrentStreak, p.LongestStreak, nullDate(p.LastActivityDate),
		p.ConceptsLearned, p.ArticlesRead, badges, ts(time.Now()))
	return translate("upsert progress", err)
}

func (s *Store) ListProgress(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+progressCols+` FROM progress WHERE user_id = ? ORDER BY topic_id`, userID.String())
	if err != nil {
		return nil, translate("list progress", err)
	}
	defer rows.Close()

	var out []domain.ProgressRecord
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, translate("scan progress", err)
		}
		out = append(out, p)
	}
	return out, translate("list progress", rows.Err())
}

func isForeignKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
