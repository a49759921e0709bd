package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCatalogSnapshotExtractsSupportedEntities(t *testing.T) {
	files := []SchemaFile{{
		Path: "database/schema/root.surql",
		Hash: "x",
		SQL: `
			DEFINE TABLE OVERWRITE person SCHEMAFULL;
			DEFINE FIELD OVERWRITE name ON person TYPE string;
			DEFINE EVENT changed ON person WHEN true THEN ();
			DEFINE INDEX by_name ON TABLE person FIELDS name;
			DEFINE FUNCTION fn::greet($name: string) { RETURN $name; };
			DEFINE PARAM $env VALUE "dev";
			DEFINE ACCESS admin ON DATABASE TYPE RECORD;
			DEFINE ANALYZER english TOKENIZERS blank, class;
			DEFINE USER app ON DATABASE PASSHASH "x";
			DEFINE API v1;
		`,
	}}

	catalog := BuildCatalogSnapshot(files)

	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindTable, Name: "person"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindField, Scope: "person", Name: "name"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindEvent, Scope: "person", Name: "changed"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindIndex, Scope: "person", Name: "by_name"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindFunction, Name: "fn::greet"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindParam, Name: "$env"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindAccess, Scope: "DATABASE", Name: "admin"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindAnalyzer, Name: "english"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindUser, Scope: "DATABASE", Name: "app"})
	assert.Contains(t, catalog.Entities, EntityKey{Kind: KindAPI, Name: "v1"})
}

func TestParseDefineEntityIgnoresUnknownAndMalformed(t *testing.T) {
	for _, stmt := range []string{
		"SELECT * FROM person",
		"DEFINE NAMESPACE app",
		"DEFINE FIELD orphan TYPE string", // field without ON
		"DEFINE",
	} {
		_, ok := ParseDefineEntity(stmt)
		assert.False(t, ok, "statement should be ignored: %s", stmt)
	}
}

func TestParseDefineEntitySkipsIfNotExists(t *testing.T) {
	key, ok := ParseDefineEntity("DEFINE TABLE IF NOT EXISTS audit SCHEMALESS")
	require.True(t, ok)
	assert.Equal(t, EntityKey{Kind: KindTable, Name: "audit"}, key)
}

func TestBuildCatalogSnapshotCollapsesDuplicates(t *testing.T) {
	files := []SchemaFile{
		{Path: "a.surql", SQL: "DEFINE TABLE person;"},
		{Path: "b.surql", SQL: "DEFINE TABLE OVERWRITE person SCHEMAFULL;"},
	}
	catalog := BuildCatalogSnapshot(files)
	assert.Len(t, catalog.Entities, 1)
}

func TestRemovedEntitiesIsSetDifference(t *testing.T) {
	old := CatalogSnapshot{Version: 1, Entities: []EntityKey{
		{Kind: KindTable, Name: "person"},
		{Kind: KindField, Scope: "person", Name: "nickname"},
	}}
	current := CatalogSnapshot{Version: 1, Entities: []EntityKey{
		{Kind: KindTable, Name: "person"},
	}}

	removed := RemovedEntities(old, current)
	assert.Equal(t, []EntityKey{{Kind: KindField, Scope: "person", Name: "nickname"}}, removed)
	assert.Empty(t, RemovedEntities(current, current))
}

func TestRenderRemoveSQLRespectsAPISupport(t *testing.T) {
	entities := []EntityKey{
		{Kind: KindField, Scope: "person", Name: "nickname"},
		{Kind: KindAPI, Name: "v1"},
	}

	stmts, err := RenderRemoveSQL(entities, true)
	require.NoError(t, err)
	assert.Contains(t, stmts, "REMOVE FIELD nickname ON person;")
	assert.Contains(t, stmts, "REMOVE API v1;")

	_, err = RenderRemoveSQL(entities, false)
	require.Error(t, err)
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, KindAPI, capErr.Entity.Kind)
}

func TestRenderRemoveSQLRequiresScope(t *testing.T) {
	_, err := RenderRemoveSQL([]EntityKey{{Kind: KindIndex, Name: "by_name"}}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope is missing")
}

func TestRenderRemoveSQLScopedAndGlobalPrincipals(t *testing.T) {
	stmts, err := RenderRemoveSQL([]EntityKey{
		{Kind: KindUser, Name: "ops"},
		{Kind: KindAccess, Scope: "DATABASE", Name: "member"},
		{Kind: "unknown_kind", Name: "ignored"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"REMOVE USER ops;", "REMOVE ACCESS member ON DATABASE;"}, stmts)
}
