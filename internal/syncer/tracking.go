// Package syncer reconciles a declarative schema directory against live
// database state: apply changed files, prune stale entities under a safety
// guard, and record sync provenance. Supports one-shot and watch modes.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"surrealkit/internal/surreal"
)

// TrackingRepository is the "current hash per path" table. Distinct from the
// migration ledger: sync tracks edits-in-place, the ledger tracks every hash
// ever applied.
type TrackingRepository interface {
	Hashes(ctx context.Context) (map[string]string, error)
	Store(ctx context.Context, path, hash string) error
}

// MetadataRepository is the key/value sync-metadata table (shared flag,
// owner, last_sync). Modeled as get/upsert so a locking layer can be slotted
// in without touching call sites.
type MetadataRepository interface {
	Get(ctx context.Context, key string) (any, error)
	Upsert(ctx context.Context, key string, value any) error
}

type surrealTracking struct {
	db surreal.Querier
}

// NewTrackingRepository builds the server-side tracking table accessor.
func NewTrackingRepository(db surreal.Querier) TrackingRepository {
	return &surrealTracking{db: db}
}

func (t *surrealTracking) Hashes(ctx context.Context) (map[string]string, error) {
	resp, err := t.db.Query(ctx, "SELECT path, hash FROM _surrealkit_sync;", nil)
	if err != nil {
		return nil, fmt.Errorf("loading sync hashes: %w", err)
	}
	if err := resp.Check(); err != nil {
		return nil, fmt.Errorf("loading sync hashes: %w", err)
	}

	out := map[string]string{}
	if len(resp) == 0 || len(resp[0].Result) == 0 {
		return out, nil
	}

	var rows []struct {
		Path string `json:"path"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(resp[0].Result, &rows); err != nil {
		return nil, fmt.Errorf("decoding sync hashes: %w", err)
	}
	for _, row := range rows {
		if row.Path != "" && row.Hash != "" {
			out[row.Path] = row.Hash
		}
	}
	return out, nil
}

// Store overwrites the tracked hash for a path. Delete-then-create rather
// than update-in-place avoids partial-write ambiguity on interrupted runs.
func (t *surrealTracking) Store(ctx context.Context, path, hash string) error {
	err := surreal.Exec(ctx, t.db,
		"DELETE _surrealkit_sync WHERE path = $path; "+
			"CREATE _surrealkit_sync CONTENT { path: $path, hash: $hash, synced_at: time::now() };",
		map[string]any{"path": path, "hash": hash})
	if err != nil {
		return fmt.Errorf("storing sync hash for %s: %w", path, err)
	}
	return nil
}

type surrealMetadata struct {
	db surreal.Querier
}

// NewMetadataRepository builds the server-side metadata table accessor.
func NewMetadataRepository(db surreal.Querier) MetadataRepository {
	return &surrealMetadata{db: db}
}

func (m *surrealMetadata) Get(ctx context.Context, key string) (any, error) {
	value, err := surreal.Value(ctx, m.db,
		"SELECT value FROM _surrealkit_sync_meta WHERE key = $key LIMIT 1;",
		map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("reading sync meta %q: %w", key, err)
	}

	rows, ok := value.([]any)
	if !ok || len(rows) == 0 {
		return nil, nil
	}
	row, ok := rows[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	return row["value"], nil
}

func (m *surrealMetadata) Upsert(ctx context.Context, key string, value any) error {
	err := surreal.Exec(ctx, m.db,
		"DELETE _surrealkit_sync_meta WHERE key = $key; "+
			"CREATE _surrealkit_sync_meta CONTENT { key: $key, value: $value, updated_at: time::now() };",
		map[string]any{"key": key, "value": value})
	if err != nil {
		return fmt.Errorf("upserting sync meta %q: %w", key, err)
	}
	return nil
}
