// Package app собирает сервис из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dailydev/internal/adapter/external/twilio"
	"dailydev/internal/adapter/httpapi"
	"dailydev/internal/adapter/scheduler"
	"dailydev/internal/config"
	"dailydev/internal/dispatch"
	"dailydev/internal/domain"
	"dailydev/internal/messaging"
	"dailydev/internal/outreach"
	"dailydev/internal/platform/httpclient"
	"dailydev/internal/platform/logger"
)

const shutdownTimeout = 15 * time.Second

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "dailydev",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run запускает сервис и блокируется до SIGINT/SIGTERM.
func (a *App) Run() error {
	defer func() { _ = logger.Close(a.log) }()
	a.log.Info("starting", "env", a.cfg.Env, "db", a.cfg.DB.Driver, "llm", a.cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := domain.ParseHourPolicy(a.cfg.Sweep.HourPolicy)
	if err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.log.Warn("close store", "err", err)
		}
	}()

	client := httpclient.New(httpclient.WithLogger(a.log), httpclient.WithTimeout(a.cfg.LLM.ArticleTimeout))
	gen, err := a.newGenerator(ctx, client)
	if err != nil {
		return err
	}

	router := messaging.NewRouter(a.log)
	wa := twilio.NewSender(client, "", a.cfg.Twilio.AccountSID, a.cfg.Twilio.AuthToken, a.cfg.Twilio.FromNumber, a.log)
	if wa.Configured() {
		router.Register(messaging.ChannelWhatsApp, wa)
	} else {
		a.log.Warn("twilio not configured, whatsapp delivery disabled")
	}

	locker, closeLocker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}
	defer closeLocker()

	sweep := dispatch.DefaultConfig()
	sweep.Workers = a.cfg.Sweep.Workers
	sweep.UserTimeout = a.cfg.Sweep.UserTimeout
	sweep.CallTimeout = a.cfg.Sweep.CallTimeout

	core := outreach.New(outreach.Deps{
		Store:     st,
		Generator: gen,
		Sender:    router,
		Locker:    locker,
		Logger:    a.log,
	}, outreach.Config{
		Policy:         policy,
		FrontendURL:    a.cfg.HTTP.FrontendURL,
		Sweep:          sweep,
		RoadmapTimeout: a.cfg.LLM.ArticleTimeout,
		ArticleTimeout: a.cfg.LLM.ArticleTimeout,
		CallTimeout:    a.cfg.Sweep.CallTimeout,
	})

	// отправитель Telegram попадает в router до запуска планировщика
	tg, err := a.newTelegram(router, core)
	if err != nil {
		return err
	}
	a.log.Info("delivery channels", "channels", router.Channels(), "hour_policy", policy)

	sched := scheduler.New(ctx, scheduler.Config{Logger: a.log.With("component", "scheduler")})
	jobs := scheduler.JobsConfig{SweepSchedule: a.cfg.Sweep.Schedule, SweepTimeout: a.cfg.Sweep.Timeout}
	if a.cfg.Digest.Enabled {
		jobs.DigestSchedule = a.cfg.Digest.Schedule
		jobs.DigestTimeout = a.cfg.Sweep.Timeout
	}
	if err := scheduler.RegisterOutreach(sched, core, jobs); err != nil {
		return err
	}

	if a.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	hcfg := httpapi.Config{
		TwilioAuthToken:   a.cfg.Twilio.AuthToken,
		ValidateSignature: a.cfg.Twilio.ValidateSignature,
		PublicURL:         a.cfg.HTTP.PublicURL,
		ReplyTimeout:      a.cfg.Sweep.UserTimeout,
	}
	if tg != nil {
		hcfg.TelegramWebhook = tg.webhookHandler()
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(core, a.log, hcfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if tg != nil {
		if err := tg.start(ctx); err != nil {
			return err
		}
	}
	sched.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case runErr = <-errCh:
		a.log.Error("http server", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.StopContext(shutdownCtx); err != nil {
		a.log.Warn("scheduler stop", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", "err", err)
	}
	if tg != nil {
		tg.stop()
	}
	a.log.Info("stopped")
	return runErr
}
