package cli

import (
	"context"

	"go.uber.org/zap"

	"surrealkit/internal/config"
	"surrealkit/internal/logging"
	"surrealkit/internal/surreal"
)

// session bundles what most commands need: resolved configuration, a logger
// and a signed-in root connection scoped to the configured namespace and
// database.
type session struct {
	cfg config.DB
	db  *surreal.Client
	log *zap.Logger
}

func newLogger(opts *RootOptions, cfg config.DB) (*zap.Logger, error) {
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(level)
}

func loadConfig() (config.DB, error) {
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		return config.DB{}, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	return cfg, nil
}

// newSession connects and signs in as root. Connection problems are command
// errors, not run failures.
func newSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(opts, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "building logger", err)
	}

	db, err := surreal.Connect(ctx, cfg.Endpoint)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connecting to database", err)
	}
	if _, err := db.SignInRoot(ctx, cfg.User, cfg.Pass); err != nil {
		return nil, WrapExitError(ExitCommandError, "root signin failed", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, WrapExitError(ExitCommandError, "selecting namespace/database", err)
	}

	return &session{cfg: cfg, db: db, log: log}, nil
}

func (s *session) close() {
	_ = s.log.Sync()
}
