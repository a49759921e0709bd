package tester

import (
	"context"
	"fmt"
	"os"
	"strings"

	"surrealkit/internal/config"
	"surrealkit/internal/surreal"
)

// ActorSession is a signed-in identity plus the headers api_request cases
// send on its behalf.
type ActorSession struct {
	DB      surreal.Querier
	Headers map[string]string
}

// mergedActorSpecs overlays suite actors on global ones; same-name suite
// actors win wholesale, fields are not merged.
func mergedActorSpecs(global, suite map[string]ActorSpec) map[string]ActorSpec {
	merged := make(map[string]ActorSpec, len(global)+len(suite))
	for name, spec := range global {
		merged[name] = spec
	}
	for name, spec := range suite {
		merged[name] = spec
	}
	return merged
}

// buildActorSessions signs in the implicit root actor plus every declared
// actor. Declared actors default to the suite's isolated namespace/database.
func buildActorSessions(ctx context.Context, cfg config.DB, namespace, database string, specs map[string]ActorSpec) (map[string]ActorSession, error) {
	out := make(map[string]ActorSession, len(specs)+1)

	root, err := buildDefaultRootSession(ctx, cfg, namespace, database)
	if err != nil {
		return nil, err
	}
	out["root"] = root

	for name, spec := range specs {
		session, err := buildSession(ctx, name, spec, cfg, namespace, database)
		if err != nil {
			return nil, err
		}
		out[name] = session
	}
	return out, nil
}

func buildDefaultRootSession(ctx context.Context, cfg config.DB, namespace, database string) (ActorSession, error) {
	db, err := surreal.Connect(ctx, cfg.Endpoint)
	if err != nil {
		return ActorSession{}, fmt.Errorf("connecting root actor: %w", err)
	}
	if _, err := db.SignInRoot(ctx, cfg.User, cfg.Pass); err != nil {
		return ActorSession{}, fmt.Errorf("root signin failed: %w", err)
	}
	if err := db.Use(ctx, namespace, database); err != nil {
		return ActorSession{}, fmt.Errorf("switching root actor to %s/%s: %w", namespace, database, err)
	}
	return ActorSession{DB: db, Headers: map[string]string{}}, nil
}

func buildSession(ctx context.Context, name string, spec ActorSpec, cfg config.DB, namespace, database string) (ActorSession, error) {
	headers := make(map[string]string, len(spec.Headers)+1)
	for k, v := range spec.Headers {
		headers[strings.ToLower(k)] = v
	}

	actorNS, err := resolveString(spec.Namespace, spec.NamespaceEnv, namespace)
	if err != nil {
		return ActorSession{}, fmt.Errorf("actor '%s' namespace: %w", name, err)
	}
	actorDB, err := resolveString(spec.Database, spec.DatabaseEnv, database)
	if err != nil {
		return ActorSession{}, fmt.Errorf("actor '%s' database: %w", name, err)
	}

	db, err := surreal.Connect(ctx, cfg.Endpoint)
	if err != nil {
		return ActorSession{}, fmt.Errorf("connecting actor '%s': %w", name, err)
	}

	var token string
	switch spec.Kind {
	case ActorRoot:
		user, err := resolveString(spec.Username, spec.UsernameEnv, cfg.User)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' root username: %w", name, err)
		}
		pass, err := resolveString(spec.Password, spec.PasswordEnv, cfg.Pass)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' root password: %w", name, err)
		}
		token, err = db.SignInRoot(ctx, user, pass)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' root signin failed: %w", name, err)
		}
	case ActorNamespace:
		user, err := resolveString(spec.Username, spec.UsernameEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' namespace username: %w", name, err)
		}
		pass, err := resolveString(spec.Password, spec.PasswordEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' namespace password: %w", name, err)
		}
		token, err = db.SignInNamespace(ctx, actorNS, user, pass)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' namespace signin failed: %w", name, err)
		}
	case ActorDatabase:
		user, err := resolveString(spec.Username, spec.UsernameEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' database username: %w", name, err)
		}
		pass, err := resolveString(spec.Password, spec.PasswordEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' database password: %w", name, err)
		}
		token, err = db.SignInDatabase(ctx, actorNS, actorDB, user, pass)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' database signin failed: %w", name, err)
		}
	case ActorRecord:
		access, err := resolveString(spec.Access, spec.AccessEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' access method: %w", name, err)
		}
		params := spec.Params
		if params == nil {
			params = map[string]any{}
		}
		token, err = db.SignInRecord(ctx, actorNS, actorDB, access, params)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' record signin failed: %w", name, err)
		}
	case ActorToken:
		token, err = resolveString(spec.Token, spec.TokenEnv, "")
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' token: %w", name, err)
		}
		if err := db.Authenticate(ctx, token); err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' token authentication failed: %w", name, err)
		}
	case ActorHeaders:
		token, err = db.SignInRoot(ctx, cfg.User, cfg.Pass)
		if err != nil {
			return ActorSession{}, fmt.Errorf("actor '%s' default root signin failed: %w", name, err)
		}
	default:
		return ActorSession{}, fmt.Errorf("actor '%s': unknown kind %q", name, spec.Kind)
	}

	if err := db.Use(ctx, actorNS, actorDB); err != nil {
		return ActorSession{}, fmt.Errorf("actor '%s' use failed for %s/%s: %w", name, actorNS, actorDB, err)
	}

	if token != "" {
		if _, ok := headers["authorization"]; !ok {
			headers["authorization"] = "Bearer " + token
		}
	}

	return ActorSession{DB: db, Headers: headers}, nil
}

func actorNameOrDefault(name string) string {
	if name == "" {
		return "root"
	}
	return name
}

func requireActor(actors map[string]ActorSession, name string) (ActorSession, error) {
	session, ok := actors[name]
	if !ok {
		return ActorSession{}, fmt.Errorf("actor '%s' not configured", name)
	}
	return session, nil
}

// resolveString picks the literal value, then the named environment
// variable, then the fallback; blank values do not count.
func resolveString(literal, envName, fallback string) (string, error) {
	if strings.TrimSpace(literal) != "" {
		return literal, nil
	}
	if envName != "" {
		value, ok := os.LookupEnv(envName)
		if !ok {
			return "", fmt.Errorf("reading env var %s: not set", envName)
		}
		if strings.TrimSpace(value) != "" {
			return value, nil
		}
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("required value missing")
}
