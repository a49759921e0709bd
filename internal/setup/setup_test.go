package setup

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surrealkit/internal/surreal"
)

type recordingDB struct {
	executed []string
}

func (db *recordingDB) Query(ctx context.Context, sql string, vars map[string]any) (surreal.Response, error) {
	db.executed = append(db.executed, sql)
	return surreal.Response{{Status: "OK"}}, nil
}

func withTempWorkdir(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestEnsureBootstrapSchemaCreatesDefaultSetupFile(t *testing.T) {
	withTempWorkdir(t)
	db := &recordingDB{}

	err := EnsureBootstrapSchema(context.Background(), db)
	require.NoError(t, err)

	written, err := os.ReadFile(SetupFilePath)
	require.NoError(t, err)
	assert.Equal(t, BootstrapSQL(), string(written))

	// The setup file runs first, the built-in definitions after.
	require.Len(t, db.executed, 2)
	assert.Contains(t, db.executed[0], "_migration")
	assert.Contains(t, db.executed[1], "_surrealkit_sync_meta")
}

func TestEnsureBootstrapSchemaKeepsProjectSetupFile(t *testing.T) {
	withTempWorkdir(t)
	custom := "DEFINE TABLE OVERWRITE widget SCHEMAFULL;\n"
	require.NoError(t, os.MkdirAll("database", 0o755))
	require.NoError(t, os.WriteFile(SetupFilePath, []byte(custom), 0o644))

	db := &recordingDB{}
	err := EnsureBootstrapSchema(context.Background(), db)
	require.NoError(t, err)

	require.Len(t, db.executed, 2)
	assert.Equal(t, custom, db.executed[0])
	assert.True(t, strings.Contains(db.executed[1], "DEFINE TABLE OVERWRITE _migration"))
}

func TestApplySeedRequiresSeedFile(t *testing.T) {
	withTempWorkdir(t)
	db := &recordingDB{}

	err := ApplySeed(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed file not found")
	assert.Empty(t, db.executed)
}

func TestApplySeedExecutesScript(t *testing.T) {
	withTempWorkdir(t)
	require.NoError(t, os.MkdirAll("database", 0o755))
	require.NoError(t, os.WriteFile(SeedFilePath, []byte("CREATE user:alice;\n"), 0o644))

	db := &recordingDB{}
	require.NoError(t, ApplySeed(context.Background(), db))

	require.Len(t, db.executed, 1)
	assert.Equal(t, "CREATE user:alice;\n", db.executed[0])
}
