package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Endpoint)
	assert.Equal(t, "db", cfg.Namespace)
	assert.Equal(t, "test", cfg.Database)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "root", cfg.Pass)
}

func TestLoadHonorsLegacyEnvNames(t *testing.T) {
	t.Setenv("PUBLIC_DATABASE_HOST", "http://db.internal:8000")
	t.Setenv("DATABASE_USER", "ops")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "http://db.internal:8000", cfg.Endpoint)
	assert.Equal(t, "ops", cfg.User)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("PUBLIC_DATABASE_HOST", "http://legacy:8000")
	t.Setenv("SURREALKIT_DB_ENDPOINT", "http://new:8000")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "http://new:8000", cfg.Endpoint)
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"1", "true", "YES", " y ", "On"} {
		v, ok := ParseBool(raw)
		assert.True(t, ok, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"0", "false", "NO", "n", "off"} {
		v, ok := ParseBool(raw)
		assert.True(t, ok, raw)
		assert.False(t, v, raw)
	}
	_, ok := ParseBool("maybe")
	assert.False(t, ok)
}
