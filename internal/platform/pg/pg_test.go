package pg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DSNConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  DSNConfig{User: "dd", Database: "dailydev"},
			want: "postgres://dd@localhost:5432/dailydev?sslmode=disable",
		},
		{
			name: "password is escaped",
			cfg:  DSNConfig{Host: "db", Port: 6432, User: "dd", Password: "p@ss/word", Database: "dailydev", SSLMode: "require", ApplicationName: "dailydev"},
			want: "postgres://dd:p%40ss%2Fword@db:6432/dailydev?application_name=dailydev&sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildDSN(tt.cfg); got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("insert enrollment: %w", &pgconn.PgError{Code: "23505", ConstraintName: "enrollments_user_topic_key"})
	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation for any constraint")
	}
	if !IsUniqueViolation(err, "enrollments_user_topic_key") {
		t.Error("expected unique violation for named constraint")
	}
	if IsUniqueViolation(err, "artifacts_item_key") {
		t.Error("unexpected match for other constraint")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("expected foreign key violation")
	}
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected no rows")
	}
}

func TestPgxTx_NoTransaction(t *testing.T) {
	t.Parallel()

	if _, ok := PgxTx(context.Background()); ok {
		t.Error("expected no transaction in empty context")
	}
	if _, ok := PgxTx(context.WithValue(context.Background(), txKey{}, "not a tx")); ok {
		t.Error("expected type assertion to fail for non-pgx.Tx value")
	}
}

func TestWaitForDB_InvalidDSNFailsFast(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := WaitForDB(context.Background(), "::not a dsn::", HealthCheckOptions{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     time.Second,
		PingTimeout:     time.Second,
	})
	if err == nil {
		t.Fatal("expected error for invalid DSN")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("invalid DSN must not be retried, took %v", time.Since(start))
	}
}

func TestHealthCheckPool_NilPool(t *testing.T) {
	t.Parallel()

	if err := HealthCheckPool(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "nil") {
		t.Errorf("expected nil pool error, got %v", err)
	}
}

func TestTxRunner_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := NewPool(ctx, dsn, PoolOptions{})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	runner := NewTxRunner(pool)
	err = runner.WithinTx(ctx, func(ctx context.Context) error {
		if _, ok := PgxTx(ctx); !ok {
			t.Error("expected transaction in context")
		}
		return runner.WithinTx(ctx, func(inner context.Context) error {
			outerTx, _ := PgxTx(ctx)
			innerTx, _ := PgxTx(inner)
			if outerTx != innerTx {
				t.Error("nested WithinTx must reuse the outer transaction")
			}
			var one int
			return runner.GetQuerier(inner).QueryRow(inner, "SELECT 1").Scan(&one)
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := HealthCheckPool(ctx, pool); err != nil {
		t.Errorf("HealthCheckPool: %v", err)
	}
}
