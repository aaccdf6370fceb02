// Package config настройки сервиса из окружения и необязательного .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"dailydev/internal/platform/pg"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	HTTP struct {
		Addr string `validate:"required"`
		// FrontendURL база ссылок на статьи
		FrontendURL string `validate:"required,url"`
		// PublicURL внешний адрес сервиса для подписи вебхуков Twilio
		PublicURL string `validate:"omitempty,url"`
	}
	DB struct {
		Driver      string `validate:"required,oneof=sqlite postgres memory"`
		DSN         string `validate:"required_if=Driver postgres"`
		SQLitePath  string `validate:"required_if=Driver sqlite"`
		AutoMigrate bool
	}
	LLM struct {
		Provider       string `validate:"required,oneof=openai gemini"`
		BaseURL        string `validate:"omitempty,url"`
		APIKey         string
		Model          string
		Timeout        time.Duration `validate:"gt=0"`
		ArticleTimeout time.Duration `validate:"gt=0"`
	}
	Twilio struct {
		AccountSID        string
		AuthToken         string
		FromNumber        string
		ValidateSignature bool
	}
	Telegram struct {
		Token         string
		WebhookURL    string `validate:"omitempty,url"`
		WebhookSecret string
		RateLimit     time.Duration `validate:"gte=0"`
		AllowedIDs    string
	}
	Sweep struct {
		Schedule    string        `validate:"required"`
		HourPolicy  string        `validate:"oneof=local utc"`
		Workers     int           `validate:"gte=1,lte=256"`
		Timeout     time.Duration `validate:"gt=0"`
		UserTimeout time.Duration `validate:"gt=0"`
		CallTimeout time.Duration `validate:"gt=0"`
	}
	Digest struct {
		Enabled  bool
		Schedule string `validate:"required_if=Enabled true"`
	}
	Redis struct {
		URL string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var (
		c    Config
		errs []error
	)
	c.Env = getenv("ENV", "prod")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/dailydev.log")

	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.HTTP.FrontendURL = strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/")
	c.HTTP.PublicURL = strings.TrimRight(os.Getenv("PUBLIC_URL"), "/")

	c.DB.Driver = strings.ToLower(getenv("DB_DRIVER", "sqlite"))
	c.DB.DSN = os.Getenv("DATABASE_URL")
	if c.DB.DSN == "" && os.Getenv("PGHOST") != "" {
		c.DB.DSN = pg.BuildDSN(pg.DSNConfig{
			Host:            os.Getenv("PGHOST"),
			Port:            getint("PGPORT", 5432, &errs),
			User:            os.Getenv("PGUSER"),
			Password:        os.Getenv("PGPASSWORD"),
			Database:        os.Getenv("PGDATABASE"),
			SSLMode:         os.Getenv("PGSSLMODE"),
			ApplicationName: "dailydev",
		})
	}
	c.DB.SQLitePath = getenv("SQLITE_PATH", "data/dailydev.db")
	c.DB.AutoMigrate = getbool("DB_AUTO_MIGRATE", true, &errs)

	c.LLM.Provider = strings.ToLower(getenv("LLM_PROVIDER", "openai"))
	c.LLM.BaseURL = os.Getenv("LLM_BASE_URL")
	c.LLM.APIKey = firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("GROQ_API_KEY"), os.Getenv("GEMINI_API_KEY"))
	c.LLM.Model = os.Getenv("LLM_MODEL")
	c.LLM.Timeout = getduration("LLM_TIMEOUT", 30*time.Second, &errs)
	c.LLM.ArticleTimeout = getduration("LLM_ARTICLE_TIMEOUT", 60*time.Second, &errs)

	c.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = os.Getenv("TWILIO_WHATSAPP_NUMBER")
	c.Twilio.ValidateSignature = getbool("TWILIO_VALIDATE_SIGNATURE", false, &errs)

	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
	c.Telegram.WebhookSecret = os.Getenv("TELEGRAM_WEBHOOK_SECRET")
	c.Telegram.RateLimit = getduration("TELEGRAM_RATE_LIMIT", time.Second, &errs)
	c.Telegram.AllowedIDs = os.Getenv("TELEGRAM_ALLOWED_IDS")

	c.Sweep.Schedule = getenv("SWEEP_SCHEDULE", "0 0 * * * *")
	c.Sweep.HourPolicy = strings.ToLower(getenv("SWEEP_HOUR_POLICY", "local"))
	c.Sweep.Workers = getint("SWEEP_WORKERS", 8, &errs)
	c.Sweep.Timeout = getduration("SWEEP_TIMEOUT", 50*time.Minute, &errs)
	c.Sweep.UserTimeout = getduration("SWEEP_USER_TIMEOUT", 90*time.Second, &errs)
	c.Sweep.CallTimeout = getduration("EXTERNAL_CALL_TIMEOUT", 30*time.Second, &errs)

	c.Digest.Enabled = getbool("DIGEST_ENABLED", true, &errs)
	c.Digest.Schedule = getenv("DIGEST_SCHEDULE", "0 0 18 * * SUN")

	c.Redis.URL = os.Getenv("REDIS_URL")

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.WebhookSecret == "" {
		return Config{}, errors.New("TELEGRAM_WEBHOOK_SECRET required when TELEGRAM_WEBHOOK_URL is set")
	}
	if c.Twilio.ValidateSignature && c.Twilio.AuthToken == "" {
		return Config{}, errors.New("TWILIO_AUTH_TOKEN required when TWILIO_VALIDATE_SIGNATURE is set")
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func getbool(k string, def bool, errs *[]error) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}

func getint(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func getduration(k string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}
