package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/planningpoker/go/internal/dbconfig"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	ctx := context.Background()

	// 1) Load the embedded migrations
	migrations, err := pokerdb.Migrations()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read migrations: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
            CREATE TABLE IF NOT EXISTS schema_migrations (
              version    TEXT PRIMARY KEY,
              applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
            )
        `); err != nil {
		fmt.Fprintf(os.Stderr, "create schema_migrations: %v\n", err)
		os.Exit(1)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read schema_migrations: %v\n", err)
		os.Exit(1)
	}

	// 3) Apply what is missing, each in its own transaction
	var ran, skipped int
	for _, m := range migrations {
		if applied[m.Version] {
			skipped++
			continue
		}
		if err := apply(ctx, pool, m); err != nil {
			fmt.Fprintf(os.Stderr, "migration %s: %v\n", m.Version, err)
			os.Exit(1)
		}
		fmt.Printf("applied %s\n", m.Version)
		ran++
	}

	fmt.Printf("Done: %d applied, %d already present\n", ran, skipped)
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, m pokerdb.Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
