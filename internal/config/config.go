// Package config resolves runtime configuration for the toolkit from the
// environment (after dotenv loading at process start).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SURREALKIT"

	defaultEndpoint  = "http://localhost:8000"
	defaultNamespace = "db"
	defaultDatabase  = "test"
	defaultUser      = "root"
	defaultPass      = "root"
	defaultLogLevel  = "info"
)

// DB carries the connection settings for the target SurrealDB instance.
type DB struct {
	Endpoint  string
	Namespace string
	Database  string
	User      string
	Pass      string
	LogLevel  string
}

// NewViper returns a viper instance with defaults and env bindings applied.
// Besides SURREALKIT_*-prefixed variables, the legacy names used by projects
// scaffolded with earlier releases stay bound.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("db.endpoint", "SURREALKIT_DB_ENDPOINT", "PUBLIC_DATABASE_HOST")
	_ = v.BindEnv("db.namespace", "SURREALKIT_DB_NAMESPACE", "PUBLIC_DATABASE_NAMESPACE")
	_ = v.BindEnv("db.name", "SURREALKIT_DB_NAME", "PUBLIC_DATABASE_NAME")
	_ = v.BindEnv("db.user", "SURREALKIT_DB_USER", "DATABASE_USER")
	_ = v.BindEnv("db.pass", "SURREALKIT_DB_PASS", "DATABASE_PASSWORD")
	_ = v.BindEnv("log.level", "SURREALKIT_LOG_LEVEL")

	v.SetDefault("db.endpoint", defaultEndpoint)
	v.SetDefault("db.namespace", defaultNamespace)
	v.SetDefault("db.name", defaultDatabase)
	v.SetDefault("db.user", defaultUser)
	v.SetDefault("db.pass", defaultPass)
	v.SetDefault("log.level", defaultLogLevel)

	return v
}

// Load parses the database configuration from v.
func Load(v *viper.Viper) (DB, error) {
	cfg := DB{
		Endpoint:  v.GetString("db.endpoint"),
		Namespace: v.GetString("db.namespace"),
		Database:  v.GetString("db.name"),
		User:      v.GetString("db.user"),
		Pass:      v.GetString("db.pass"),
		LogLevel:  v.GetString("log.level"),
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return DB{}, fmt.Errorf("db.endpoint is required")
	}
	if strings.TrimSpace(cfg.Namespace) == "" || strings.TrimSpace(cfg.Database) == "" {
		return DB{}, fmt.Errorf("db.namespace and db.name are required")
	}
	return cfg, nil
}

// ParseBool interprets the boolean spellings accepted in sync metadata env
// overrides. The second return reports whether raw was a recognized form.
func ParseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
