package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempWorkdir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func writeSuite(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(SuitesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(SuitesDir, name), []byte(content), 0o644))
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(ConfigPath), 0o755))
	require.NoError(t, os.WriteFile(ConfigPath, []byte(content), 0o644))
}

const validSuite = `name: auth
tags: [auth]

actors:
  visitor:
    kind: record
    access: user
    params:
      email: visitor@example.com

fixtures:
  - name: seed users
    sql: "CREATE user:1 CONTENT { name: 'ada' };"

cases:
  - name: select own record
    kind: sql_expect
    actor: visitor
    sql: "SELECT * FROM user:1;"
    assertions:
      - path: "0.name"
        equals: ada

  - name: denied delete
    kind: permissions_matrix
    table: user
    actor: visitor
    rules:
      - action: delete
        allow: false
`

func TestLoadSpecsReadsConfigAndSuites(t *testing.T) {
	withTempWorkdir(t)
	writeConfig(t, "defaults:\n  base_url: http://localhost:8000\n  timeout_ms: 5000\nactors:\n  admin:\n    kind: root\n")
	writeSuite(t, "b_auth.yaml", validSuite)
	writeSuite(t, "a_smoke.yaml", "name: smoke\ncases:\n  - name: ping\n    kind: schema_metadata\n    sql: \"INFO FOR DB;\"\n    contains: [\"tables\"]\n")

	loaded, err := LoadSpecs()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", loaded.Global.Defaults.BaseURL)
	assert.Equal(t, 5000, loaded.Global.Defaults.TimeoutMS)
	assert.Equal(t, ActorRoot, loaded.Global.Actors["admin"].Kind)

	require.Len(t, loaded.Suites, 2)
	assert.Equal(t, "database/tests/suites/a_smoke.yaml", loaded.Suites[0].Path)
	assert.Equal(t, "database/tests/suites/b_auth.yaml", loaded.Suites[1].Path)

	auth := loaded.Suites[1].Spec
	require.Len(t, auth.Cases, 2)
	sqlCase := auth.Cases[0]
	require.NotNil(t, sqlCase.SQLExpect)
	assert.True(t, sqlCase.SQLExpect.Allow, "allow defaults to true")
	assert.Equal(t, "visitor", sqlCase.SQLExpect.Actor)

	perm := auth.Cases[1]
	require.NotNil(t, perm.PermissionsMatrix)
	require.Len(t, perm.PermissionsMatrix.Rules, 1)
	assert.False(t, perm.PermissionsMatrix.Rules[0].Allowed())
}

func TestLoadSpecsMissingConfigUsesDefaults(t *testing.T) {
	withTempWorkdir(t)
	writeSuite(t, "smoke.yaml", "cases:\n  - name: ping\n    kind: sql_expect\n    sql: \"RETURN 1;\"\n")

	loaded, err := LoadSpecs()
	require.NoError(t, err)
	assert.Empty(t, loaded.Global.Defaults.BaseURL)
	assert.Len(t, loaded.Suites, 1)
}

func TestLoadSpecsNoSuitesIsError(t *testing.T) {
	withTempWorkdir(t)
	require.NoError(t, os.MkdirAll(SuitesDir, 0o755))

	_, err := LoadSpecs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suite files")
}

func TestLoadSpecsRejectsUnknownFields(t *testing.T) {
	withTempWorkdir(t)
	writeSuite(t, "bad.yaml", "name: bad\ncases:\n  - name: x\n    kind: sql_expect\n    sql: \"RETURN 1;\"\n    exepct: boom\n")

	_, err := LoadSpecs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestLoadSpecsRejectsUnknownKind(t *testing.T) {
	withTempWorkdir(t)
	writeSuite(t, "bad_kind.yaml", "name: bad\ncases:\n  - name: x\n    kind: mystery\n    sql: \"RETURN 1;\"\n")

	_, err := LoadSpecs()
	require.Error(t, err)
}

func TestDecodeDefaultsForSchemaBehavior(t *testing.T) {
	withTempWorkdir(t)
	writeSuite(t, "behave.yaml", "cases:\n  - name: reject bad email\n    kind: schema_behavior\n    action_sql: \"CREATE user CONTENT { email: 'nope' };\"\n    expect_success: false\n    expect_error_contains: email\n")

	loaded, err := LoadSpecs()
	require.NoError(t, err)
	c := loaded.Suites[0].Spec.Cases[0]
	require.NotNil(t, c.SchemaBehavior)
	assert.False(t, c.SchemaBehavior.ExpectSuccess)
	assert.Equal(t, "email", c.SchemaBehavior.ExpectErrorContains)
}
