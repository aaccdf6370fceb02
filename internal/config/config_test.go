package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv сбрасывает переменные, которые могли прийти из окружения CI.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "LOG_CONSOLE_LEVEL", "LOG_FILE_LEVEL", "LOG_FILE", "HTTP_ADDR", "FRONTEND_URL", "PUBLIC_URL",
		"DB_DRIVER", "DATABASE_URL", "SQLITE_PATH", "DB_AUTO_MIGRATE",
		"LLM_PROVIDER", "LLM_BASE_URL", "LLM_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY", "LLM_MODEL",
		"LLM_TIMEOUT", "LLM_ARTICLE_TIMEOUT",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_NUMBER", "TWILIO_VALIDATE_SIGNATURE",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_WEBHOOK_URL", "TELEGRAM_WEBHOOK_SECRET", "TELEGRAM_RATE_LIMIT", "TELEGRAM_ALLOWED_IDS",
		"SWEEP_SCHEDULE", "SWEEP_HOUR_POLICY", "SWEEP_WORKERS", "SWEEP_TIMEOUT", "SWEEP_USER_TIMEOUT", "EXTERNAL_CALL_TIMEOUT",
		"DIGEST_ENABLED", "DIGEST_SCHEDULE", "REDIS_URL",
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Env)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, "http://localhost:3000", c.HTTP.FrontendURL)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.True(t, c.DB.AutoMigrate)
	assert.Equal(t, "openai", c.LLM.Provider)
	assert.Equal(t, "local", c.Sweep.HourPolicy)
	assert.Equal(t, "0 0 * * * *", c.Sweep.Schedule)
	assert.Equal(t, 8, c.Sweep.Workers)
	assert.Equal(t, 30*time.Second, c.Sweep.CallTimeout)
	assert.True(t, c.Digest.Enabled)
	assert.Equal(t, time.Second, c.Telegram.RateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "dev")
	t.Setenv("FRONTEND_URL", "https://dailydev.app/")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/dailydev")
	t.Setenv("GROQ_API_KEY", "gsk_x")
	t.Setenv("SWEEP_HOUR_POLICY", "UTC")
	t.Setenv("SWEEP_WORKERS", "3")
	t.Setenv("SWEEP_USER_TIMEOUT", "45s")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dailydev.app", c.HTTP.FrontendURL)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, "gsk_x", c.LLM.APIKey)
	assert.Equal(t, "utc", c.Sweep.HourPolicy)
	assert.Equal(t, 3, c.Sweep.Workers)
	assert.Equal(t, 45*time.Second, c.Sweep.UserTimeout)
}

func TestLoad_DSNFromPGVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "5433")
	t.Setenv("PGUSER", "app")
	t.Setenv("PGPASSWORD", "secret")
	t.Setenv("PGDATABASE", "dailydev")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db:5433/dailydev?application_name=dailydev&sslmode=disable", c.DB.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad env", map[string]string{"ENV": "staging"}},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"bad policy", map[string]string{"SWEEP_HOUR_POLICY": "server"}},
		{"bad workers", map[string]string{"SWEEP_WORKERS": "many"}},
		{"zero workers", map[string]string{"SWEEP_WORKERS": "0"}},
		{"bad duration", map[string]string{"LLM_TIMEOUT": "soon"}},
		{"bad provider", map[string]string{"LLM_PROVIDER": "claude"}},
		{"webhook without secret", map[string]string{"TELEGRAM_WEBHOOK_URL": "https://x.test/hook"}},
		{"signature without token", map[string]string{"TWILIO_VALIDATE_SIGNATURE": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
