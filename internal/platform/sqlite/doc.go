// Package sqlite подключение к SQLite (modernc.org/sqlite, без cgo) для
// локального запуска и тестов.
//
// Настройки соединения передаются через DSN (_pragma, _txlock), поэтому
// применяются к каждому соединению пула, а не только к первому.
//
// Транзакции:
//
//	runner := sqlite.NewTxRunner(db)
//	err := runner.WithinTx(ctx, func(ctx context.Context) error {
//		q := runner.GetQuerier(ctx)
//		_, err := q.ExecContext(ctx, "UPDATE ...")
//		return err
//	})
//
// Вложенный WithinTx выполняется в уже открытой транзакции. SQLITE_BUSY
// повторяется с экспоненциальной задержкой.
//
// Для тестов есть NewTestDBInMemory: база в памяти с одним соединением
// и применёнными миграциями.
package sqlite
