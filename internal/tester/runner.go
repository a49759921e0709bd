package tester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"surrealkit/internal/config"
	"surrealkit/internal/setup"
	"surrealkit/internal/surreal"
	"surrealkit/internal/syncer"
)

// Runner executes suites, each inside an isolated namespace/database derived
// from the run id and the suite's slug.
type Runner struct {
	cfg       config.DB
	opts      Options
	global    GlobalConfig
	log       *zap.Logger
	baseURL   string
	timeoutMS int
	runID     string
}

// NewRunner resolves the base URL and timeout chains and mints the run id.
func NewRunner(cfg config.DB, opts Options, global GlobalConfig, log *zap.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		opts:      opts,
		global:    global,
		log:       log,
		baseURL:   ResolveBaseURL(opts, global),
		timeoutMS: ResolveTimeoutMS(opts, global),
		runID:     newRunID(),
	}
}

// ResolveBaseURL picks the api_request base URL: flag, then config default,
// then environment. WebSocket schemes are folded to their HTTP equivalents.
// Empty means no base URL; api_request cases will then fail with guidance.
func ResolveBaseURL(opts Options, global GlobalConfig) string {
	candidates := []string{
		opts.BaseURL,
		global.Defaults.BaseURL,
		os.Getenv("SURREALKIT_TEST_BASE_URL"),
		os.Getenv("PUBLIC_DATABASE_HOST"),
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return normalizeBaseURL(c)
		}
	}
	return ""
}

// ResolveTimeoutMS picks the per-case HTTP timeout: flag, config default,
// environment, then 10 seconds.
func ResolveTimeoutMS(opts Options, global GlobalConfig) int {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	if global.Defaults.TimeoutMS > 0 {
		return global.Defaults.TimeoutMS
	}
	if raw := os.Getenv("SURREALKIT_TEST_TIMEOUT_MS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 10000
}

func normalizeBaseURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "ws://"); ok {
		return "http://" + rest
	}
	if rest, ok := strings.CutPrefix(raw, "wss://"); ok {
		return "https://" + rest
	}
	return raw
}

// Run executes the given suites and folds their reports. With fail-fast and
// parallelism, suites already settled stay in the report; unstarted ones are
// skipped.
func (r *Runner) Run(ctx context.Context, suites []LoadedSuite) (RunReport, error) {
	startedAt := time.Now().UTC()

	var suiteReports []SuiteReport
	var err error
	if r.opts.Parallel <= 1 {
		suiteReports, err = r.runSequential(ctx, suites)
	} else {
		suiteReports, err = r.runParallel(ctx, suites)
	}
	if err != nil {
		return RunReport{}, err
	}

	finishedAt := time.Now().UTC()
	report := RunReport{
		StartedAt:  startedAt.Format(time.RFC3339),
		FinishedAt: finishedAt.Format(time.RFC3339),
		DurationMS: finishedAt.Sub(startedAt).Milliseconds(),
		Suites:     suiteReports,
	}
	foldRunCounts(&report)
	return report, nil
}

func (r *Runner) runSequential(ctx context.Context, suites []LoadedSuite) ([]SuiteReport, error) {
	var reports []SuiteReport
	for _, suite := range suites {
		report, err := r.runSuite(ctx, suite)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
		if r.opts.FailFast && report.CasesFailed > 0 {
			break
		}
	}
	return reports, nil
}

func (r *Runner) runParallel(ctx context.Context, suites []LoadedSuite) ([]SuiteReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.opts.Parallel)

	var mu sync.Mutex
	var reports []SuiteReport

	for _, suite := range suites {
		suite := suite
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			report, err := r.runSuite(gctx, suite)
			if err != nil {
				// An abort triggered by a sibling's failure is not an error.
				if errors.Is(err, context.Canceled) && runCtx.Err() != nil {
					return nil
				}
				return err
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			if r.opts.FailFast && report.CasesFailed > 0 {
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].SuiteFile < reports[j].SuiteFile })
	return reports, nil
}

func (r *Runner) runSuite(ctx context.Context, suite LoadedSuite) (SuiteReport, error) {
	started := time.Now()
	suiteName := suite.Spec.Name
	if suiteName == "" {
		suiteName = suite.Path
	}
	slug := slugify(suiteName + "-" + suite.Path)
	namespace := fmt.Sprintf("%s_sk_test_%s_%s", r.cfg.Namespace, r.runID, slug)
	database := fmt.Sprintf("%s_sk_test_%s_%s", r.cfg.Database, r.runID, slug)

	actors, err := r.prepareSuite(ctx, suite, namespace, database)
	if err != nil {
		return SuiteReport{}, fmt.Errorf("preparing suite %s: %w", suite.Path, err)
	}

	var cases []CaseReport
	for _, c := range suite.Spec.Cases {
		caseStart := time.Now()
		report, err := runCase(ctx, c, actors, r.baseURL, r.timeoutMS)
		if err != nil {
			report = CaseReport{
				Name:    c.Name,
				Kind:    c.Kind,
				Passed:  false,
				Message: err.Error(),
			}
		}
		report.DurationMS = time.Since(caseStart).Milliseconds()
		cases = append(cases, report)
		if r.opts.FailFast && !report.Passed {
			break
		}
	}

	if !r.opts.KeepDB {
		if err := r.cleanupSuiteDB(ctx, namespace, database); err != nil {
			r.log.Warn("failed to clean up test database",
				zap.String("namespace", namespace),
				zap.String("database", database),
				zap.Error(err))
		}
	}

	report := SuiteReport{
		SuiteFile:  suite.Path,
		SuiteName:  suiteName,
		Namespace:  namespace,
		Database:   database,
		DurationMS: time.Since(started).Milliseconds(),
		Cases:      cases,
	}
	foldSuiteCounts(&report)
	return report, nil
}

// prepareSuite bootstraps the isolated database: tracking tables, schema
// sync, seed, then fixtures. Root fixtures run before non-root actors sign
// in so record-access tables exist by the time they authenticate.
func (r *Runner) prepareSuite(ctx context.Context, suite LoadedSuite, namespace, database string) (map[string]ActorSession, error) {
	merged := mergedActorSpecs(r.global.Actors, suite.Spec.Actors)

	bootstrap, err := buildActorSessions(ctx, r.cfg, namespace, database, nil)
	if err != nil {
		return nil, err
	}
	root := bootstrap["root"]

	if !r.opts.NoSetup {
		if err := setup.EnsureBootstrapSchema(ctx, root.DB); err != nil {
			return nil, err
		}
	}
	if !r.opts.NoSync {
		reconciler := syncer.New(root.DB, r.log)
		err := reconciler.Run(ctx, syncer.Options{
			FailFast:         true,
			Prune:            true,
			AllowSharedPrune: true,
		})
		if err != nil {
			return nil, err
		}
	}
	if !r.opts.NoSeed {
		if err := setup.ApplySeed(ctx, root.DB); err != nil {
			return nil, err
		}
	}

	suiteBase := filepath.Dir(suite.Path)
	if suiteBase == "." {
		suiteBase = SuitesDir
	}
	for _, f := range r.global.Fixtures {
		if fixtureTargetsRoot(f) {
			if err := applyFixture(ctx, f, bootstrap, filepath.Dir(ConfigPath)); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range suite.Spec.Fixtures {
		if fixtureTargetsRoot(f) {
			if err := applyFixture(ctx, f, bootstrap, suiteBase); err != nil {
				return nil, err
			}
		}
	}

	actors, err := buildActorSessions(ctx, r.cfg, namespace, database, merged)
	if err != nil {
		return nil, err
	}

	for _, f := range r.global.Fixtures {
		if !fixtureTargetsRoot(f) {
			if err := applyFixture(ctx, f, actors, filepath.Dir(ConfigPath)); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range suite.Spec.Fixtures {
		if !fixtureTargetsRoot(f) {
			if err := applyFixture(ctx, f, actors, suiteBase); err != nil {
				return nil, err
			}
		}
	}

	return actors, nil
}

func (r *Runner) cleanupSuiteDB(ctx context.Context, namespace, database string) error {
	db, err := surreal.Connect(ctx, r.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("connecting for cleanup: %w", err)
	}
	if _, err := db.SignInRoot(ctx, r.cfg.User, r.cfg.Pass); err != nil {
		return fmt.Errorf("cleanup root signin failed: %w", err)
	}
	if err := db.Use(ctx, namespace, database); err != nil {
		return err
	}
	return surreal.Exec(ctx, db, fmt.Sprintf("REMOVE DATABASE %s;", database), nil)
}

func applyFixture(ctx context.Context, f FixtureSpec, actors map[string]ActorSession, baseDir string) error {
	actor, err := requireActor(actors, actorNameOrDefault(f.Actor))
	if err != nil {
		return err
	}
	sql, err := fixtureSQL(f, baseDir)
	if err != nil {
		return err
	}
	if outcome := execSQL(ctx, actor.DB, sql); outcome.err != nil {
		return fmt.Errorf("fixture '%s' failed: %w", fixtureName(f), outcome.err)
	}
	return nil
}

func fixtureSQL(f FixtureSpec, baseDir string) (string, error) {
	switch {
	case f.SQL != "" && f.File != "":
		return "", fmt.Errorf("fixture '%s' cannot define both sql and file", fixtureName(f))
	case f.SQL != "":
		return f.SQL, nil
	case f.File != "":
		path := f.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading fixture file %s: %w", path, err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("fixture '%s' requires sql or file", fixtureName(f))
	}
}

func fixtureName(f FixtureSpec) string {
	if f.Name == "" {
		return "unnamed"
	}
	return f.Name
}

func fixtureTargetsRoot(f FixtureSpec) bool {
	return f.Actor == "" || f.Actor == "root"
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// slugify folds a name to lowercase ascii alphanumerics separated by single
// underscores, safe to embed in namespace and database identifiers.
func slugify(input string) string {
	folded := norm.NFKD.String(strings.ToLower(input))
	var b strings.Builder
	prevSep := false
	for _, ch := range folded {
		switch {
		case (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9'):
			b.WriteRune(ch)
			prevSep = false
		case !prevSep:
			b.WriteByte('_')
			prevSep = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "suite"
	}
	return slug
}
