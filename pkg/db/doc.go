// Package db connects to PostgreSQL through a pgx pool and applies goose
// migrations.
//
//	pool, err := db.Connect(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := db.Migrate(ctx, pool, repository.Migrations(), cfg.MigrationsTable, log); err != nil {
//	    return err
//	}
//
// Connect retries with a linear backoff so the service survives starting
// before the database. WithTx runs a function in a transaction and rolls it
// back on error or panic.
package db
