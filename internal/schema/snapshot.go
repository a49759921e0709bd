package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default project layout. Paths are repository-relative with forward slashes.
const (
	SchemaDir           = "database/schema"
	MigrationsDir       = "database/migrations"
	StateDir            = "database/.surrealkit"
	SchemaSnapshotPath  = "database/.surrealkit/schema_snapshot.json"
	CatalogSnapshotPath = "database/.surrealkit/catalog_snapshot.json"
)

// SchemaFile is one schema source file with its content hash. Immutable once
// read; recomputed every run.
type SchemaFile struct {
	Path string
	SQL  string
	Hash string
}

// SnapshotEntry is the persisted (path, hash) pair for one file.
type SnapshotEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// SchemaSnapshot is the last known file state, sorted by path.
type SchemaSnapshot struct {
	Version int             `json:"version"`
	Files   []SnapshotEntry `json:"files"`
}

// CatalogSnapshot is the persisted set of structural entities.
type CatalogSnapshot struct {
	Version  int         `json:"version"`
	Entities []EntityKey `json:"entities"`
}

// HashBytes returns the lowercase hex SHA-256 of raw content.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EnsureLocalStateDirs creates the schema, migrations and snapshot-state
// directories when missing.
func EnsureLocalStateDirs() error {
	for _, dir := range []string{SchemaDir, MigrationsDir, StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// CollectSchemaFiles walks dir for .surql files, sorted by path, reading and
// hashing each one.
func CollectSchemaFiles(dir string) ([]SchemaFile, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".surql" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	out := make([]SchemaFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, SchemaFile{
			Path: NormalizePath(path),
			SQL:  string(data),
			Hash: HashBytes(data),
		})
	}
	return out, nil
}

// NormalizePath renders a repository-relative, forward-slash path.
func NormalizePath(path string) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

// SnapshotFromFiles builds a version-1 snapshot sorted by path regardless of
// input order.
func SnapshotFromFiles(files []SchemaFile) SchemaSnapshot {
	entries := make([]SnapshotEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, SnapshotEntry{Path: f.Path, Hash: f.Hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return SchemaSnapshot{Version: 1, Files: entries}
}

// LoadSchemaSnapshot reads the persisted file snapshot; a missing file is the
// empty snapshot, not an error.
func LoadSchemaSnapshot() (SchemaSnapshot, error) {
	snap := SchemaSnapshot{Version: 1}
	err := loadJSON(SchemaSnapshotPath, &snap)
	return snap, err
}

// SaveSchemaSnapshot persists the file snapshot.
func SaveSchemaSnapshot(snap SchemaSnapshot) error {
	return saveJSONPretty(SchemaSnapshotPath, snap)
}

// LoadCatalogSnapshot reads the persisted entity catalog; a missing file is
// the empty catalog.
func LoadCatalogSnapshot() (CatalogSnapshot, error) {
	snap := CatalogSnapshot{Version: 1}
	err := loadJSON(CatalogSnapshotPath, &snap)
	return snap, err
}

// SaveCatalogSnapshot persists the entity catalog.
func SaveCatalogSnapshot(snap CatalogSnapshot) error {
	return saveJSONPretty(CatalogSnapshotPath, snap)
}

func loadJSON(path string, target any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func saveJSONPretty(path string, value any) error {
	if err := EnsureLocalStateDirs(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
