// Package scaffold lays down the project directory skeleton and the default
// files a fresh project needs. Existing files are never overwritten.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"surrealkit/internal/schema"
	"surrealkit/internal/setup"
	"surrealkit/internal/tester"
)

const defaultSeed = "--- SEED\n"

const defaultTestConfig = `defaults:
  timeout_ms: 10000

actors:
  root:
    kind: root
`

const defaultSmokeSuite = `name: smoke
tags: [smoke]

cases:
  - name: migration_table_visible
    kind: schema_metadata
    sql: "INFO FOR TABLE _migration;"
    contains: ["_migration"]
`

// Result lists what Init actually touched, for reporting.
type Result struct {
	CreatedDirs  []string
	CreatedFiles []string
	SkippedFiles []string
}

// Init creates the database directory tree and write-if-absent default files:
// the setup script, a seed placeholder, the shared test config and a smoke
// suite. It is safe to run in an already-initialized project.
func Init() (Result, error) {
	var res Result

	dirs := []string{
		schema.SchemaDir,
		schema.MigrationsDir,
		schema.StateDir,
		tester.SuitesDir,
		tester.FixturesDir,
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			res.CreatedDirs = append(res.CreatedDirs, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	files := []struct {
		path    string
		content string
	}{
		{setup.SeedFilePath, defaultSeed},
		{setup.SetupFilePath, setup.BootstrapSQL()},
		{tester.ConfigPath, defaultTestConfig},
		{filepath.Join(tester.SuitesDir, "smoke.yaml"), defaultSmokeSuite},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			res.SkippedFiles = append(res.SkippedFiles, f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return res, fmt.Errorf("writing %s: %w", f.path, err)
		}
		res.CreatedFiles = append(res.CreatedFiles, f.path)
	}

	return res, nil
}
