package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/config"
)

const (
	migrationsTable = "schema_migrations"
	migrationsDir   = "migrations"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, status, create")
		name   = flag.String("name", "", "Migration name (for create action)")
		steps  = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		dir    = flag.String("dir", migrationsDir, "Directory holding migration files")
	)
	flag.Parse()

	if err := run(*action, *name, *steps, *dir); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(action, name string, steps int, dir string) error {
	// create needs no database, so handle it before dialing.
	if action == "create" {
		if name == "" {
			return fmt.Errorf("migration name is required for create action")
		}
		return (&Migrator{dir: dir}).Create(name)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m := &Migrator{db: db, dir: dir}
	ctx := context.Background()

	switch action {
	case "up":
		return m.Up(ctx, steps)
	case "down":
		return m.Down(ctx, steps)
	case "status":
		return m.Status(ctx)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// Migration is one row of the schema_migrations ledger.
type Migration struct {
	ID        string
	Filename  string
	AppliedAt time.Time
}

// Migrator runs plain-SQL files from dir in filename order, one
// transaction per file, and records each in schema_migrations. Down
// only removes ledger rows; reversing the schema change itself is a
// manual operation.
type Migrator struct {
	db  *sql.DB
	dir string
}

// Up applies pending migrations oldest first. steps limits how many
// run; zero means all of them.
func (m *Migrator) Up(ctx context.Context, steps int) error {
	pending, err := m.getPendingMigrations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		slog.Info("no pending migrations")
		return nil
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}

	for _, file := range pending {
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
		slog.Info("applied migration", "file", file)
	}

	slog.Info("migrations completed", "count", len(pending))
	return nil
}

// Down removes the newest ledger rows, making those migrations pending
// again. steps limits how many; zero means all of them.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	applied, err := m.ledger(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		slog.Info("no migrations to roll back")
		return nil
	}

	// Newest first. Rows applied within the same instant unwind in
	// reverse id order so a batch rolls back symmetrically.
	sort.Slice(applied, func(i, j int) bool {
		if applied[i].AppliedAt.Equal(applied[j].AppliedAt) {
			return applied[i].ID > applied[j].ID
		}
		return applied[i].AppliedAt.After(applied[j].AppliedAt)
	})
	if steps > 0 && steps < len(applied) {
		applied = applied[:steps]
	}

	for _, mig := range applied {
		query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", migrationsTable)
		if _, err := m.db.ExecContext(ctx, query, mig.ID); err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", mig.Filename, err)
		}
		slog.Warn("migration unrecorded, schema change still in place", "file", mig.Filename)
	}

	slog.Info("rollback completed", "count", len(applied))
	return nil
}

// Status prints the ledger followed by whatever is still pending.
func (m *Migrator) Status(ctx context.Context) error {
	applied, err := m.ledger(ctx)
	if err != nil {
		return err
	}
	pending, err := m.getPendingMigrations(ctx)
	if err != nil {
		return err
	}

	sort.Slice(applied, func(i, j int) bool {
		return applied[i].AppliedAt.Before(applied[j].AppliedAt)
	})

	fmt.Printf("Applied migrations: %d\n", len(applied))
	for _, mig := range applied {
		fmt.Printf("  %s (applied at %s)\n", mig.Filename, mig.AppliedAt.Format(time.RFC3339))
	}
	fmt.Printf("\nPending migrations: %d\n", len(pending))
	for _, file := range pending {
		fmt.Printf("  %s\n", filepath.Base(file))
	}
	return nil
}

// Create writes an empty timestamped migration file into dir.
func (m *Migrator) Create(name string) error {
	id := fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), name)
	path := filepath.Join(m.dir, id+".sql")

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}

	content := fmt.Sprintf("-- Migration: %s\n-- Created at: %s\n\n-- Add your migration SQL here\n\n",
		name, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create migration file: %w", err)
	}

	slog.Info("created migration", "file", path)
	return nil
}

// apply runs one file inside a transaction together with its ledger
// insert, so a failed migration leaves no half-applied record.
func (m *Migrator) apply(ctx context.Context, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	base := filepath.Base(file)
	query := fmt.Sprintf("INSERT INTO %s (id, filename) VALUES ($1, $2)", migrationsTable)
	if _, err := tx.ExecContext(ctx, query, extractMigrationID(base), base); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// getPendingMigrations lists files in dir with no ledger row, oldest
// first. Glob returns lexically sorted paths, which for timestamped
// filenames is application order.
func (m *Migrator) getPendingMigrations(ctx context.Context) ([]string, error) {
	applied, err := m.ledger(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(applied))
	for _, mig := range applied {
		seen[mig.ID] = true
	}

	files, err := filepath.Glob(filepath.Join(m.dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migration files: %w", err)
	}

	var pending []string
	for _, file := range files {
		if !seen[extractMigrationID(filepath.Base(file))] {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

// ledger reads schema_migrations, creating it on first contact with a
// fresh database.
func (m *Migrator) ledger(ctx context.Context) ([]Migration, error) {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, migrationsTable)
	if _, err := m.db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, filename, applied_at FROM %s", migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		if err := rows.Scan(&mig.ID, &mig.Filename, &mig.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

func extractMigrationID(filename string) string {
	return strings.TrimSuffix(filename, ".sql")
}
