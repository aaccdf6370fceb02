// Package store контракт хранилища рассылки.
//
// Все переходы статуса элемента расписания выполняются условным обновлением
// (compare-and-set): MarkSent меняет только pending, MarkRead только sent,
// MarkSkipped только pending. Проигравший гонку получает ErrStale.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dailydev/internal/domain"
	"dailydev/internal/shared"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = shared.MarkKind(errors.New("store: not found"), shared.KindNotFound)
	// ErrConflict нарушено ограничение уникальности
	ErrConflict = shared.MarkKind(errors.New("store: conflict"), shared.KindConflict)
	// ErrStale условное обновление не нашло строку в ожидаемом статусе
	ErrStale = shared.MarkKind(errors.New("store: stale state"), shared.KindConflict)
)

// Fixed identifiers of topics seeded by migrations.
var (
	TopicDSA          = uuid.MustParse("6f1c2a4e-8d0b-4c53-9a7e-1b2f3c4d5e01")
	TopicSystemDesign = uuid.MustParse("6f1c2a4e-8d0b-4c53-9a7e-1b2f3c4d5e02")
)

// Persistence оборачивает ошибку драйвера как отказ зависимости.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return shared.Wrap(shared.MarkKind(err, shared.KindDependencyFailure), op)
}

// Transactor выполняет fn атомарно. Вложенные вызовы присоединяются к внешней транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Users граничные записи пользователей.
type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetUserByHandle(ctx context.Context, handle string) (domain.User, error)
	// ListReachableUsers пользователи с подключённым каналом и непустым адресом.
	ListReachableUsers(ctx context.Context) ([]domain.User, error)
}

// Topics граничные записи тем.
type Topics interface {
	CreateTopic(ctx context.Context, t domain.Topic) error
	GetTopic(ctx context.Context, id uuid.UUID) (domain.Topic, error)
}

// Enrollments записи на темы.
type Enrollments interface {
	// CreateEnrollment возвращает ErrConflict для повторной пары (user, topic).
	CreateEnrollment(ctx context.Context, e domain.Enrollment) error
	GetEnrollment(ctx context.Context, userID, topicID uuid.UUID) (domain.Enrollment, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]domain.Enrollment, error)
}

// Items элементы расписания.
type Items interface {
	CreateItems(ctx context.Context, items []domain.ScheduleItem) error
	GetItem(ctx context.Context, id uuid.UUID) (domain.ScheduleItem, error)
	// ListItems элементы темы по возрастанию дня.
	ListItems(ctx context.Context, userID, topicID uuid.UUID) ([]domain.ScheduleItem, error)
	// NextPendingItem самый ранний pending по всем темам пользователя:
	// день, затем дата, затем тема.
	NextPendingItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error)
	// NextDueItem самый ранний pending или sent в теме.
	NextDueItem(ctx context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error)
	// LatestSentItem последний по sent_at элемент в статусе sent.
	LatestSentItem(ctx context.Context, userID uuid.UUID) (domain.ScheduleItem, error)
	// LastSentAt время последней отправки пользователю в любом статусе; nil, если не было.
	LastSentAt(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	// SetHookIfEmpty сохраняет хук, только если его ещё нет, и возвращает сохранённое значение.
	SetHookIfEmpty(ctx context.Context, itemID uuid.UUID, hook string) (string, error)
	MarkSent(ctx context.Context, itemID uuid.UUID, sentAt time.Time, deliveryID string) error
	MarkRead(ctx context.Context, itemID uuid.UUID, respondedAt time.Time) error
	MarkSkipped(ctx context.Context, itemID uuid.UUID) error
}

// Artifacts статьи.
type Artifacts interface {
	// CreateArtifact вставляет статью; если для элемента статья уже есть,
	// возвращает существующую и created=false.
	CreateArtifact(ctx context.Context, a domain.Artifact) (stored domain.Artifact, created bool, err error)
	GetArtifact(ctx context.Context, id uuid.UUID) (domain.Artifact, error)
	GetArtifactByItem(ctx context.Context, itemID uuid.UUID) (domain.Artifact, error)
	IncrementArtifactViews(ctx context.Context, id uuid.UUID) (domain.Artifact, error)
}

// Progress сводки прогресса.
type Progress interface {
	// GetProgress внутри транзакции блокирует строку до конца транзакции там,
	// где драйвер это поддерживает.
	GetProgress(ctx context.Context, userID, topicID uuid.UUID) (domain.ProgressRecord, error)
	UpsertProgress(ctx context.Context, p domain.ProgressRecord) error
	ListProgress(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error)
}

// Store полный набор репозиториев.
type Store interface {
	Transactor
	Users
	Topics
	Enrollments
	Items
	Artifacts
	Progress
	Ping(ctx context.Context) error
	Close() error
}
