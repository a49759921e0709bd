// Package migrate applies schema files as content-addressed, append-only
// migrations recorded in the server-side _migration ledger.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"surrealkit/internal/schema"
	"surrealkit/internal/setup"
	"surrealkit/internal/surreal"
)

// Options controls a migrate-all pass.
type Options struct {
	FailFast bool
	DryRun   bool
}

// Record is one ledger row: a file hash that has been applied.
type Record struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	AppliedAt string `json:"applied_at"`
}

// Ledger applies migration files and records them by content hash. The hash
// is the sole idempotency check: an unchanged file is skipped, a byte-modified
// file is a brand-new migration and never supersedes the old row.
type Ledger struct {
	db  surreal.Querier
	log *zap.Logger

	// bootstrap is swapped out in tests.
	bootstrap func(ctx context.Context) error
}

// NewLedger builds a ledger over the given database session.
func NewLedger(db surreal.Querier, log *zap.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: log,
		bootstrap: func(ctx context.Context) error {
			return setup.EnsureBootstrapSchema(ctx, db)
		},
	}
}

// ApplyFile applies one file unless its hash is already recorded. It returns
// true when the file was executed and recorded, false when skipped.
func (l *Ledger) ApplyFile(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	hash := schema.HashBytes(raw)

	applied, err := l.isApplied(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", path, err)
	}
	if applied {
		return false, nil
	}

	if err := surreal.Exec(ctx, l.db, string(raw), nil); err != nil {
		return false, fmt.Errorf("applying %s: %w", path, err)
	}

	err = surreal.Exec(ctx, l.db,
		"CREATE _migration CONTENT { id: $id, file: $file, applied_at: $ts };",
		map[string]any{
			"id":   hash,
			"file": schema.NormalizePath(path),
			"ts":   time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return false, fmt.Errorf("recording migration %s: %w", path, err)
	}
	return true, nil
}

func (l *Ledger) isApplied(ctx context.Context, hash string) (bool, error) {
	value, err := surreal.Value(ctx, l.db,
		"SELECT * FROM _migration WHERE id = $id;",
		map[string]any{"id": hash})
	if err != nil {
		return false, err
	}
	rows, ok := value.([]any)
	return ok && len(rows) > 0, nil
}

// MigrateAll ensures the ledger table exists, then discovers migration files
// (falling back to the schema directory when the migrations directory is
// empty) and applies each in lexicographic path order. File naming is the
// caller's ordering mechanism.
func (l *Ledger) MigrateAll(ctx context.Context, opts Options) error {
	if err := l.bootstrap(ctx); err != nil {
		return fmt.Errorf("ensuring ledger table: %w", err)
	}

	files, err := l.collectFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		l.log.Info("no .surql migration files found", zap.String("dir", schema.MigrationsDir))
		return nil
	}

	for _, file := range files {
		if opts.DryRun {
			l.log.Info("dry run: would apply", zap.String("file", file.Path))
			continue
		}

		applied, err := l.ApplyFile(ctx, file.Path)
		switch {
		case err != nil:
			l.log.Error("migration failed", zap.String("file", file.Path), zap.Error(err))
			if opts.FailFast {
				return err
			}
		case applied:
			l.log.Info("applied", zap.String("file", file.Path))
		default:
			l.log.Info("skipped (already applied)", zap.String("file", file.Path))
		}
	}
	return nil
}

// ApplyOne applies a single file, optionally through the ledger.
func (l *Ledger) ApplyOne(ctx context.Context, path string, track bool) error {
	if track {
		_, err := l.ApplyFile(ctx, path)
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return surreal.Exec(ctx, l.db, string(raw), nil)
}

// Records lists applied migrations ordered by apply time.
func (l *Ledger) Records(ctx context.Context) ([]Record, error) {
	resp, err := l.db.Query(ctx, "SELECT id, file, applied_at FROM _migration ORDER BY applied_at;", nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Check(); err != nil {
		return nil, err
	}
	if len(resp) == 0 || len(resp[0].Result) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(resp[0].Result, &records); err != nil {
		return nil, fmt.Errorf("decoding ledger rows: %w", err)
	}
	return records, nil
}

func (l *Ledger) collectFiles() ([]schema.SchemaFile, error) {
	files, err := schema.CollectSchemaFiles(schema.MigrationsDir)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return files, nil
	}

	legacy, err := schema.CollectSchemaFiles(schema.SchemaDir)
	if err != nil {
		return nil, err
	}
	if len(legacy) > 0 {
		l.log.Warn("using legacy migration source because the migrations directory is empty",
			zap.String("legacy", schema.SchemaDir),
			zap.String("primary", schema.MigrationsDir))
	}
	return legacy, nil
}
