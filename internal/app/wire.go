package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailydev/internal/adapter/external/gemini"
	"dailydev/internal/adapter/external/openai"
	"dailydev/internal/adapter/telegram"
	"dailydev/internal/adapter/telegram/handlers"
	"dailydev/internal/adapter/telegram/middleware"
	"dailydev/internal/config"
	"dailydev/internal/content"
	"dailydev/internal/dispatch"
	"dailydev/internal/messaging"
	"dailydev/internal/platform/httpclient"
	"dailydev/internal/platform/pg"
	"dailydev/internal/platform/redislock"
	"dailydev/internal/platform/sqlite"
	"dailydev/internal/store"
	"dailydev/internal/store/memstore"
	"dailydev/internal/store/pgstore"
	"dailydev/internal/store/sqlitestore"
	"dailydev/migrations"
)

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.DB.Driver {
	case "memory":
		a.log.Warn("in-memory store, data is lost on restart")
		return memstore.New(), nil

	case "postgres":
		if err := pg.WaitForDB(ctx, a.cfg.DB.DSN, pg.DefaultHealthCheckOptions()); err != nil {
			return nil, err
		}
		if a.cfg.DB.AutoMigrate {
			info, err := pg.ApplyMigrations(a.cfg.DB.DSN, migrations.FS, migrations.PostgresDir)
			if err != nil {
				return nil, err
			}
			a.log.Info("postgres migrations", "applied", info.Applied, "version", info.FinalVersion)
		}
		pool, err := pg.NewPool(ctx, a.cfg.DB.DSN, pg.DefaultPoolOptions())
		if err != nil {
			return nil, err
		}
		return pgstore.New(pool), nil

	default:
		db, err := sqlite.Open(ctx, a.cfg.DB.SQLitePath, sqlite.DefaultDBOptions())
		if err != nil {
			return nil, err
		}
		if a.cfg.DB.AutoMigrate {
			if err := sqlite.ApplyMigrations(db, migrations.FS, migrations.SQLiteDir); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		a.log.Info("sqlite store", "path", a.cfg.DB.SQLitePath)
		return sqlitestore.New(db), nil
	}
}

// newGenerator без ключа возвращает генератор, который всегда отвечает
// content.ErrNotConfigured; ядро тогда работает на запасном контенте.
func (a *App) newGenerator(ctx context.Context, client *httpclient.Client) (content.Generator, error) {
	llm := a.cfg.LLM
	if llm.APIKey == "" {
		a.log.Warn("llm api key not set, fallback content only")
	}
	if llm.Provider == "gemini" && llm.APIKey != "" {
		return gemini.New(ctx, llm.APIKey, llm.Model, gemini.WithLogger(a.log))
	}
	return openai.NewGenerator(client, llm.BaseURL, llm.Model, llm.APIKey, openai.WithLogger(a.log)), nil
}

func (a *App) newLocker(ctx context.Context) (dispatch.Locker, func(), error) {
	if a.cfg.Redis.URL == "" {
		return dispatch.NopLocker{}, func() {}, nil
	}
	client, err := redislock.Open(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	return redislock.New(client, a.log), func() { _ = client.Close() }, nil
}

// telegramBot бот и очередь обработки его updates.
type telegramBot struct {
	bot  *bot.Bot
	disp *telegram.Dispatcher
	cfg  config.Config
}

// newTelegram nil, если токен не задан. Отправитель канала регистрируется в
// router; приём updates запускает start.
func (a *App) newTelegram(router *messaging.Router, svc handlers.Service) (*telegramBot, error) {
	tc := a.cfg.Telegram
	if tc.Token == "" {
		a.log.Info("telegram not configured")
		return nil, nil
	}
	ids, err := middleware.ParseAllowedIDs(tc.AllowedIDs)
	if err != nil {
		return nil, err
	}
	h := middleware.Chain(handlers.New(svc, a.log).Handle,
		middleware.NewACL(ids).Middleware,
		middleware.NewRateLimiter(tc.RateLimit).Middleware,
	)

	tb := &telegramBot{cfg: a.cfg}
	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, upd *models.Update) {
			tb.disp.Dispatch(ctx, upd)
		}),
		bot.WithAllowedUpdates([]string{"message"}),
	}
	if tc.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(tc.WebhookSecret))
	}
	b, err := bot.New(tc.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	tb.bot = b
	tb.disp = telegram.NewDispatcher(b, 8, h)
	router.Register(messaging.ChannelTelegram, telegram.NewSender(b, a.log))
	return tb, nil
}

// webhookHandler nil в режиме long polling.
func (tb *telegramBot) webhookHandler() http.Handler {
	if tb.cfg.Telegram.WebhookURL == "" {
		return nil
	}
	return tb.bot.WebhookHandler()
}

func (tb *telegramBot) start(ctx context.Context) error {
	tc := tb.cfg.Telegram
	if tc.WebhookURL == "" {
		go tb.bot.Start(ctx)
		return nil
	}
	if _, err := tb.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         tc.WebhookURL,
		SecretToken: tc.WebhookSecret,
	}); err != nil {
		return fmt.Errorf("telegram set webhook: %w", err)
	}
	go tb.bot.StartWebhook(ctx)
	return nil
}

func (tb *telegramBot) stop() {
	tb.disp.Close()
}
