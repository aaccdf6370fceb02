package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dailydev/internal/domain"
	"dailydev/internal/outreach"
	"dailydev/internal/shared"
)

const dateLayout = "2006-01-02"

type enrollRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	TopicID      uuid.UUID `json:"topic_id" binding:"required"`
	DurationDays int       `json:"duration_days" binding:"required,oneof=30 60 90"`
}

type enrollmentDTO struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	TopicID      uuid.UUID `json:"topic_id"`
	DurationDays int       `json:"duration_days"`
	StartDate    string    `json:"start_date"`
	TargetDate   string    `json:"target_date"`
	Status       string    `json:"status"`
}

func toEnrollment(e domain.Enrollment) enrollmentDTO {
	return enrollmentDTO{
		ID: e.ID, UserID: e.UserID, TopicID: e.TopicID, DurationDays: e.DurationDays,
		StartDate: e.StartDate.Format(dateLayout), TargetDate: e.TargetDate.Format(dateLayout),
		Status: e.Status,
	}
}

type itemDTO struct {
	ID              uuid.UUID  `json:"id"`
	TopicID         uuid.UUID  `json:"topic_id"`
	DayNumber       int        `json:"day_number"`
	ConceptTitle    string     `json:"concept_title"`
	ConceptSlug     string     `json:"concept_slug"`
	Difficulty      string     `json:"difficulty"`
	ReadTimeMinutes int        `json:"read_time_minutes"`
	ScheduledDate   string     `json:"scheduled_date"`
	Status          string     `json:"status"`
	Hook            *string    `json:"hook,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
}

func toItem(it domain.ScheduleItem) itemDTO {
	return itemDTO{
		ID: it.ID, TopicID: it.TopicID, DayNumber: it.DayNumber,
		ConceptTitle: it.ConceptTitle, ConceptSlug: it.ConceptSlug,
		Difficulty: string(it.Difficulty), ReadTimeMinutes: it.ReadTimeMinutes,
		ScheduledDate: it.ScheduledDate.Format(dateLayout), Status: string(it.Status),
		Hook: it.Hook, SentAt: it.SentAt, RespondedAt: it.RespondedAt,
	}
}

type artifactDTO struct {
	ID             uuid.UUID                `json:"id"`
	ScheduleItemID uuid.UUID                `json:"schedule_item_id"`
	Title          string                   `json:"title"`
	Slug           string                   `json:"slug"`
	ELI5           string                   `json:"eli5"`
	Technical      string                   `json:"technical"`
	CodeSnippets   []domain.CodeSnippet     `json:"code_snippets"`
	RealWorld      string                   `json:"real_world"`
	Practice       []domain.PracticeProblem `json:"practice"`
	Placeholder    bool                     `json:"placeholder"`
	ViewCount      int                      `json:"view_count"`
	CreatedAt      time.Time                `json:"created_at"`
}

func toArtifact(a domain.Artifact) artifactDTO {
	return artifactDTO{
		ID: a.ID, ScheduleItemID: a.ScheduleItemID, Title: a.Title, Slug: a.Slug,
		ELI5: a.ELI5, Technical: a.Technical, CodeSnippets: a.CodeSnippets,
		RealWorld: a.RealWorld, Practice: a.Practice, Placeholder: a.Placeholder,
		ViewCount: a.ViewCount, CreatedAt: a.CreatedAt,
	}
}

type overviewDTO struct {
	Enrollment enrollmentDTO `json:"enrollment"`
	Topic      string        `json:"topic"`
	Items      []itemDTO     `json:"items"`
	Completed  int           `json:"completed"`
	CurrentDay int           `json:"current_day"`
	Total      int           `json:"total"`
}

func toOverview(o outreach.Overview) overviewDTO {
	items := make([]itemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, toItem(it))
	}
	return overviewDTO{
		Enrollment: toEnrollment(o.Enrollment), Topic: o.Topic.Name, Items: items,
		Completed: o.Completed, CurrentDay: o.CurrentDay, Total: o.Total,
	}
}

func (h *handler) enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, shared.MarkKind(err, shared.KindValidation))
		return
	}
	e, err := h.svc.EnrollUser(c.Request.Context(), req.UserID, req.TopicID, req.DurationDays)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toEnrollment(e))
}

// userTopic разбирает :user_id и :topic_id.
func userTopic(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	topicID, err := uuidParam(c, "topic_id")
	return userID, topicID, err
}

func (h *handler) nextDue(c *gin.Context) {
	userID, topicID, err := userTopic(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	it, err := h.svc.GetNextDue(c.Request.Context(), userID, topicID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toItem(it))
}

func (h *handler) roadmap(c *gin.Context) {
	userID, topicID, err := userTopic(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	ov, err := h.svc.RoadmapOverview(c.Request.Context(), userID, topicID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toOverview(ov))
}

func (h *handler) userStats(c *gin.Context) {
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sum, err := h.svc.UserStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handler) generateArtifact(c *gin.Context) {
	itemID, err := uuidParam(c, "item_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	a, err := h.svc.GenerateArtifact(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toArtifact(a))
}

func (h *handler) skipItem(c *gin.Context) {
	itemID, err := uuidParam(c, "item_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.svc.SkipItem(c.Request.Context(), itemID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// viewArtifact ?viewer_id= необязателен; без него просмотр анонимный.
func (h *handler) viewArtifact(c *gin.Context) {
	artifactID, err := uuidParam(c, "artifact_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	viewer := uuid.Nil
	if v := c.Query("viewer_id"); v != "" {
		if viewer, err = uuid.Parse(v); err != nil {
			respondError(c, h.log, shared.Validationf("viewer_id: malformed id"))
			return
		}
	}
	a, err := h.svc.ViewArtifact(c.Request.Context(), artifactID, viewer)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toArtifact(a))
}

func (h *handler) runSweep(c *gin.Context) {
	stats, err := h.svc.RunSweepOnce(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) sendDigest(c *gin.Context) {
	stats, err := h.svc.SendWeeklyDigest(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
