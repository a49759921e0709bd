// Package setup idempotently defines the toolkit's own server-side tracking
// tables (migration ledger, sync hashes, sync metadata) and runs the project
// seed script.
package setup

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"surrealkit/internal/surreal"
)

//go:embed bootstrap.surql
var bootstrapSQL string

// SetupFilePath is the project-owned setup script executed before the
// built-in bootstrap definitions.
const SetupFilePath = "database/setup.surql"

// SeedFilePath is the fixed seed script location.
const SeedFilePath = "database/seed.surql"

// EnsureBootstrapSchema creates the project setup file from the embedded
// default when absent, executes it, then applies the built-in tracking-table
// definitions. All statements use OVERWRITE so repeated runs are no-ops.
func EnsureBootstrapSchema(ctx context.Context, q surreal.Querier) error {
	if _, err := os.Stat(SetupFilePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(SetupFilePath), 0o755); err != nil {
			return fmt.Errorf("creating setup directory: %w", err)
		}
		if err := os.WriteFile(SetupFilePath, []byte(bootstrapSQL), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", SetupFilePath, err)
		}
	}

	sql, err := os.ReadFile(SetupFilePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", SetupFilePath, err)
	}
	if err := surreal.Exec(ctx, q, string(sql), nil); err != nil {
		return fmt.Errorf("executing %s: %w", SetupFilePath, err)
	}
	if err := surreal.Exec(ctx, q, bootstrapSQL, nil); err != nil {
		return fmt.Errorf("executing bootstrap definitions: %w", err)
	}
	return nil
}

// ApplySeed executes the fixed seed script; a missing script is an error.
func ApplySeed(ctx context.Context, q surreal.Querier) error {
	sql, err := os.ReadFile(SeedFilePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("seed file not found: %s", SeedFilePath)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", SeedFilePath, err)
	}
	if err := surreal.Exec(ctx, q, string(sql), nil); err != nil {
		return fmt.Errorf("executing %s: %w", SeedFilePath, err)
	}
	return nil
}

// BootstrapSQL exposes the embedded definitions for scaffolding.
func BootstrapSQL() string {
	return bootstrapSQL
}
