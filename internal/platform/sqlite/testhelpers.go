package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"dailydev/migrations"
)

// TestDB база в памяти с миграциями для тестов.
type TestDB struct {
	DB       *sql.DB
	TxRunner *TxRunner
}

// NewTestDBInMemory создаёт базу в памяти, применяет миграции и закрывает
// её после теста.
func NewTestDBInMemory(t testing.TB) *TestDB {
	t.Helper()

	db, err := OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := ApplyMigrations(db, migrations.FS, migrations.SQLiteDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return &TestDB{DB: db, TxRunner: NewTxRunner(db)}
}

// Exec выполняет запрос и валит тест при ошибке.
func (tdb *TestDB) Exec(t testing.TB, query string, args ...any) sql.Result {
	t.Helper()
	res, err := tdb.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
	return res
}

// CountRows число строк в таблице, опционально с условием where.
func (tdb *TestDB) CountRows(t testing.TB, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := tdb.DB.QueryRowContext(context.Background(), q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
