package reply

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"dailydev/internal/content"
	"dailydev/internal/domain"
	"dailydev/internal/store"
)

// Artifacts выдаёт статью для элемента расписания, генерируя её не больше
// одного раза. Конкурентные запросы внутри процесса схлопываются через
// singleflight, между процессами выручает уникальность schedule_item_id.
type Artifacts struct {
	store   store.Store
	gen     content.Generator
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time

	group singleflight.Group
}

// NewArtifacts timeout ограничивает генерацию; 0 означает 90 секунд.
func NewArtifacts(s store.Store, gen content.Generator, log *slog.Logger, timeout time.Duration) *Artifacts {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Artifacts{store: s, gen: gen, log: log.With("component", "artifacts"), timeout: timeout, now: time.Now}
}

// Ensure возвращает существующую статью или создаёт новую. Если генератор
// не справился, сохраняется заглушка с Placeholder=true.
func (a *Artifacts) Ensure(ctx context.Context, item domain.ScheduleItem) (domain.Artifact, error) {
	if existing, err := a.store.GetArtifactByItem(ctx, item.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Artifact{}, err
	}

	v, err, _ := a.group.Do(item.ID.String(), func() (any, error) {
		if existing, err := a.store.GetArtifactByItem(ctx, item.ID); err == nil {
			return existing, nil
		}
		return a.create(ctx, item)
	})
	if err != nil {
		return domain.Artifact{}, err
	}
	return v.(domain.Artifact), nil
}

func (a *Artifacts) create(ctx context.Context, item domain.ScheduleItem) (domain.Artifact, error) {
	log := a.log.With("item_id", item.ID, "concept", item.ConceptTitle)

	art, placeholder := a.generate(ctx, log, item)
	stored, created, err := a.store.CreateArtifact(ctx, domain.Artifact{
		ID:             uuid.New(),
		ScheduleItemID: item.ID,
		Title:          item.ConceptTitle,
		Slug:           item.ConceptSlug,
		ELI5:           art.ELI5,
		Technical:      art.Technical,
		CodeSnippets:   art.CodeSnippets,
		RealWorld:      art.RealWorld,
		Practice:       art.Practice,
		Placeholder:    placeholder,
		CreatedAt:      a.now(),
	})
	if err != nil {
		return domain.Artifact{}, err
	}
	if created {
		log.Info("artifact created", "artifact_id", stored.ID, "placeholder", placeholder)
	}
	return stored, nil
}

func (a *Artifacts) generate(ctx context.Context, log *slog.Logger, item domain.ScheduleItem) (content.Article, bool) {
	if a.gen == nil {
		return content.PlaceholderArticle(item.ConceptTitle), true
	}

	req := content.ArticleRequest{Concept: item.ConceptTitle}
	if topic, err := a.store.GetTopic(ctx, item.TopicID); err == nil {
		req.Topic = topic.Name
	}
	if user, err := a.store.GetUser(ctx, item.UserID); err == nil {
		req.SkillSummary = user.SkillSummary
	}

	gctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	art, err := a.gen.GenerateArticle(gctx, req)
	if err == nil && art.Empty() {
		err = content.ErrInvalidResponse
	}
	if err != nil {
		log.Warn("article generation failed, storing placeholder", "err", err)
		return content.PlaceholderArticle(item.ConceptTitle), true
	}
	return art, false
}
