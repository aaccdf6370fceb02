// Package httpapi HTTP-поверхность сервиса на gin: вебхук Twilio, вебхук
// Telegram, JSON API операций ядра и /healthz.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dailydev/internal/digest"
	"dailydev/internal/dispatch"
	"dailydev/internal/domain"
	"dailydev/internal/outreach"
	"dailydev/internal/progress"
)

// Service операции ядра, доступные по HTTP.
type Service interface {
	EnrollUser(ctx context.Context, userID, topicID uuid.UUID, durationDays int) (domain.Enrollment, error)
	GetNextDue(ctx context.Context, userID, topicID uuid.UUID) (domain.ScheduleItem, error)
	HandleInboundReply(ctx context.Context, handle, text string) (bool, error)
	RunSweepOnce(ctx context.Context) (dispatch.SweepStats, error)
	GenerateArtifact(ctx context.Context, itemID uuid.UUID) (domain.Artifact, error)
	ViewArtifact(ctx context.Context, artifactID, viewerID uuid.UUID) (domain.Artifact, error)
	SkipItem(ctx context.Context, itemID uuid.UUID) error
	RoadmapOverview(ctx context.Context, userID, topicID uuid.UUID) (outreach.Overview, error)
	UserStats(ctx context.Context, userID uuid.UUID) (progress.Summary, error)
	SendWeeklyDigest(ctx context.Context) (digest.Stats, error)
	Ready(ctx context.Context) error
}

var _ Service = (*outreach.Core)(nil)

// Config параметры HTTP-слоя.
type Config struct {
	// TwilioAuthToken ключ проверки X-Twilio-Signature
	TwilioAuthToken string
	// ValidateSignature включает проверку подписи вебхука
	ValidateSignature bool
	// PublicURL внешний адрес сервиса без завершающего "/", нужен для подписи за прокси
	PublicURL string
	// ReplyTimeout сколько вебхук ждёт обработку ответа
	ReplyTimeout time.Duration
	// TelegramWebhook обработчик вебхука бота; nil, если бот работает через long polling
	TelegramWebhook http.Handler
}

type handler struct {
	svc Service
	log *slog.Logger
	cfg Config
}

// NewRouter собирает gin.Engine.
func NewRouter(svc Service, log *slog.Logger, cfg Config) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = 90 * time.Second
	}
	h := &handler{svc: svc, log: log, cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", h.health)

	wh := r.Group("/webhooks")
	{
		wa := wh.Group("/whatsapp")
		if cfg.ValidateSignature {
			wa.Use(TwilioSignature(cfg.TwilioAuthToken, cfg.PublicURL, log))
		}
		wa.POST("", h.whatsappWebhook)
		wa.GET("", h.whatsappVerify)

		if cfg.TelegramWebhook != nil {
			wh.POST("/telegram", gin.WrapH(cfg.TelegramWebhook))
		}
	}

	api := r.Group("/api/v1")
	{
		api.POST("/enrollments", h.enroll)
		api.GET("/users/:user_id/stats", h.userStats)
		api.GET("/users/:user_id/topics/:topic_id/next", h.nextDue)
		api.GET("/users/:user_id/topics/:topic_id/roadmap", h.roadmap)
		api.POST("/items/:item_id/artifact", h.generateArtifact)
		api.POST("/items/:item_id/skip", h.skipItem)
		api.GET("/artifacts/:artifact_id", h.viewArtifact)
		api.POST("/sweeps", h.runSweep)
		api.POST("/digests", h.sendDigest)
	}
	return r
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ready(ctx); err != nil {
		h.log.Warn("health check failed", "err", err)
		c.String(http.StatusServiceUnavailable, "unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}
