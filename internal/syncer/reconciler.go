package syncer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"surrealkit/internal/config"
	"surrealkit/internal/schema"
	"surrealkit/internal/setup"
	"surrealkit/internal/surreal"
)

// MinInterval is the floor for the watch-mode polling interval.
const MinInterval = 250 * time.Millisecond

// Environment overrides consulted by the reconciler.
const (
	EnvSharedDB = "SURREALKIT_SHARED_DB"
	EnvOwner    = "SURREALKIT_OWNER"
)

// Options controls a reconciliation run.
type Options struct {
	Watch            bool
	Interval         time.Duration
	DryRun           bool
	FailFast         bool
	Prune            bool
	AllowSharedPrune bool
}

// Reconciler drives schema files toward the live database. One CLI invocation
// per target database is assumed; there is no distributed locking.
type Reconciler struct {
	db       surreal.Querier
	tracking TrackingRepository
	meta     MetadataRepository
	log      *zap.Logger

	// apiProbe and bootstrap are swapped out in tests.
	apiProbe  func(ctx context.Context) (bool, error)
	bootstrap func(ctx context.Context) error
}

// New builds a reconciler with server-backed tracking repositories.
func New(db surreal.Querier, log *zap.Logger) *Reconciler {
	return &Reconciler{
		db:       db,
		tracking: NewTrackingRepository(db),
		meta:     NewMetadataRepository(db),
		log:      log,
		apiProbe: func(ctx context.Context) (bool, error) {
			return surreal.SupportsRemoveAPI(ctx, db)
		},
		bootstrap: func(ctx context.Context) error {
			return setup.EnsureBootstrapSchema(ctx, db)
		},
	}
}

// Run ensures the tracking tables exist, then performs a one-shot pass or
// loops in watch mode until ctx is cancelled. In watch mode a non-fail-fast
// iteration error is logged and the loop continues; a fail-fast error
// terminates the loop and propagates.
func (r *Reconciler) Run(ctx context.Context, opts Options) error {
	if err := r.bootstrap(ctx); err != nil {
		return fmt.Errorf("ensuring tracking tables: %w", err)
	}
	if err := schema.EnsureLocalStateDirs(); err != nil {
		return err
	}

	if !opts.Watch {
		return r.runOnce(ctx, opts, false)
	}

	if err := r.runOnce(ctx, opts, true); err != nil {
		return err
	}

	interval := opts.Interval
	if interval < MinInterval {
		interval = MinInterval
	}
	r.log.Info("watch mode active, waiting for schema changes",
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping schema watch")
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, opts, true); err != nil {
				if opts.FailFast {
					return err
				}
				r.log.Warn("sync iteration failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context, opts Options, watchMode bool) error {
	files, err := schema.CollectSchemaFiles(schema.SchemaDir)
	if err != nil {
		return err
	}
	if len(files) == 0 && !watchMode {
		r.log.Info("no schema files found", zap.String("dir", schema.SchemaDir))
	}

	tracked, err := r.tracking.Hashes(ctx)
	if err != nil {
		return err
	}

	var changed, applyErrors int
	for _, file := range files {
		if tracked[file.Path] == file.Hash {
			continue
		}
		changed++

		if opts.DryRun {
			r.log.Info("dry run: would apply", zap.String("file", file.Path))
			continue
		}

		if err := surreal.Exec(ctx, r.db, file.SQL, nil); err != nil {
			applyErrors++
			r.log.Error("error applying schema file", zap.String("file", file.Path), zap.Error(err))
			if opts.FailFast {
				return fmt.Errorf("applying %s: %w", file.Path, err)
			}
			continue
		}
		r.log.Info("applied", zap.String("file", file.Path))
		if err := r.tracking.Store(ctx, file.Path, file.Hash); err != nil {
			return err
		}
	}

	oldCatalog, err := schema.LoadCatalogSnapshot()
	if err != nil {
		return err
	}
	newCatalog := schema.BuildCatalogSnapshot(files)
	stale := schema.RemovedEntities(oldCatalog, newCatalog)

	pruned := 0
	if opts.Prune && len(stale) > 0 {
		n, err := r.prune(ctx, stale, opts, watchMode)
		if err != nil {
			return err
		}
		pruned = n
	}

	if !opts.DryRun {
		if err := r.writeMetaFromEnv(ctx); err != nil {
			return err
		}
		if err := r.meta.Upsert(ctx, "last_sync", time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		if applyErrors == 0 {
			if err := schema.SaveSchemaSnapshot(schema.SnapshotFromFiles(files)); err != nil {
				return err
			}
			// Persist the catalog only once no stale entities are pending,
			// so an unpruned entity stays a prune candidate on the next run.
			if len(stale) == 0 || pruned == len(stale) {
				if err := schema.SaveCatalogSnapshot(newCatalog); err != nil {
					return err
				}
			}
		}
	}

	switch {
	case watchMode && (changed > 0 || len(stale) > 0):
		r.log.Info("change detected and pushed",
			zap.Int("files_synced", changed),
			zap.Int("stale_pruned", pruned),
			zap.Bool("dry_run", opts.DryRun))
	case !watchMode && changed == 0:
		r.log.Info("schema already in sync")
	}

	if applyErrors > 0 {
		r.log.Warn("sync completed with apply errors", zap.Int("errors", applyErrors))
	}
	if len(stale) > 0 && !opts.Prune {
		r.log.Info("stale entities detected; enable pruning to remove them",
			zap.Int("count", len(stale)))
	}
	return nil
}

func (r *Reconciler) prune(ctx context.Context, stale []schema.EntityKey, opts Options, watchMode bool) (int, error) {
	shared, err := r.detectShared(ctx)
	if err != nil {
		return 0, err
	}
	if shared && !opts.AllowSharedPrune {
		return 0, fmt.Errorf("database is marked shared; refusing stale prune without --allow-shared-prune")
	}

	apiSupported := true
	if hasAPIEntity(stale) {
		apiSupported, err = r.apiProbe(ctx)
		if err != nil {
			return 0, fmt.Errorf("probing REMOVE API support: %w", err)
		}
	}

	stmts, err := schema.RenderRemoveSQL(stale, apiSupported)
	if err != nil {
		return 0, err
	}

	if opts.DryRun {
		if !watchMode {
			r.log.Info("dry run: would prune stale entities", zap.Int("count", len(stmts)))
			for _, stmt := range stmts {
				r.log.Info("dry run: " + stmt)
			}
		}
		return 0, nil
	}

	if err := surreal.Exec(ctx, r.db, strings.Join(stmts, "\n"), nil); err != nil {
		return 0, fmt.Errorf("pruning stale entities: %w", err)
	}
	if !watchMode {
		r.log.Info("pruned stale entities", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

// detectShared checks the shared-database guard: an explicit environment
// override takes precedence over the server-stored flag.
func (r *Reconciler) detectShared(ctx context.Context) (bool, error) {
	if raw, ok := os.LookupEnv(EnvSharedDB); ok {
		if parsed, valid := config.ParseBool(raw); valid {
			return parsed, nil
		}
	}

	value, err := r.meta.Get(ctx, "shared")
	if err != nil {
		return false, err
	}
	shared, _ := value.(bool)
	return shared, nil
}

func (r *Reconciler) writeMetaFromEnv(ctx context.Context) error {
	if raw, ok := os.LookupEnv(EnvSharedDB); ok {
		if parsed, valid := config.ParseBool(raw); valid {
			if err := r.meta.Upsert(ctx, "shared", parsed); err != nil {
				return err
			}
		}
	}
	if owner := strings.TrimSpace(os.Getenv(EnvOwner)); owner != "" {
		if err := r.meta.Upsert(ctx, "owner", owner); err != nil {
			return err
		}
	}
	return nil
}

func hasAPIEntity(entities []schema.EntityKey) bool {
	for _, e := range entities {
		if e.Kind == schema.KindAPI {
			return true
		}
	}
	return false
}
