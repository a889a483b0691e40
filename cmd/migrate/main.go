package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/civiclens/internal/pkg/config"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_name.sql and NNN_name.down.sql files")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: migrate [-dir migrations] <up|down|status>")
	}

	cfg, err := config.Load("civiclens-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	ups, downs, err := listMigrations(*dir)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	switch flag.Arg(0) {
	case "up":
		err = migrateUp(ctx, pool, ups)
	case "down":
		err = migrateDown(ctx, pool, downs)
	case "status":
		err = status(ctx, pool, ups)
	default:
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
	if err != nil {
		log.Fatal(err)
	}
}

// listMigrations returns the up files sorted by name and the down file for
// each migration name.
func listMigrations(dir string) ([]string, map[string]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)

	var ups []string
	downs := make(map[string]string)
	for _, f := range files {
		base := filepath.Base(f)
		if name, ok := strings.CutSuffix(base, ".down.sql"); ok {
			downs[name] = f
			continue
		}
		ups = append(ups, f)
	}
	return ups, downs, nil
}

func migrationName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), ".sql")
}

func applied(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	done, err := applied(ctx, pool)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, f := range files {
		name := migrationName(f)
		if done[name] {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}
		slog.Info("migration applied", "name", name)
	}

	slog.Info("all migrations applied")
	return nil
}

// migrateDown reverts the most recently applied migration.
func migrateDown(ctx context.Context, pool *pgxpool.Pool, downs map[string]string) error {
	var name string
	err := pool.QueryRow(ctx, `SELECT name FROM schema_migrations ORDER BY name DESC LIMIT 1`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		slog.Info("nothing to revert")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	f, ok := downs[name]
	if !ok {
		return fmt.Errorf("no down file for %s", name)
	}
	data, err := os.ReadFile(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", f, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("revert %s: %w", name, err)
	}
	slog.Info("migration reverted", "name", name)
	return nil
}

func status(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	done, err := applied(ctx, pool)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	for _, f := range files {
		state := "pending"
		if done[migrationName(f)] {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, migrationName(f))
	}
	return nil
}
