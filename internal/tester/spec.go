// Package tester loads declarative YAML test suites and runs them against a
// live database, each suite inside its own throwaway namespace/database pair.
package tester

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Options carries the flag surface of a single test run.
type Options struct {
	Suite    string
	Case     string
	Tags     []string
	FailFast bool
	Parallel int
	JSONOut  string
	NoSetup  bool
	NoSync   bool
	NoSeed   bool
	BaseURL  string
	Timeout  int // milliseconds; 0 means unset
	KeepDB   bool
}

// GlobalConfig is the optional shared configuration at database/tests/config.yaml.
// Actors declared here are visible to every suite; suite-level actors with the
// same name win.
type GlobalConfig struct {
	Defaults GlobalDefaults       `yaml:"defaults"`
	Actors   map[string]ActorSpec `yaml:"actors"`
	Fixtures []FixtureSpec        `yaml:"fixtures"`
}

// GlobalDefaults holds fallbacks for api_request cases.
type GlobalDefaults struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// SuiteSpec is one suite file under database/tests/suites.
type SuiteSpec struct {
	Name     string               `yaml:"name"`
	Tags     []string             `yaml:"tags"`
	Actors   map[string]ActorSpec `yaml:"actors"`
	Fixtures []FixtureSpec        `yaml:"fixtures"`
	Cases    []CaseSpec           `yaml:"cases"`
}

// FixtureSpec runs SQL before a suite's cases, either inline or from a file
// resolved relative to the declaring document. Exactly one of SQL and File
// must be set.
type FixtureSpec struct {
	Name  string `yaml:"name"`
	Actor string `yaml:"actor"`
	SQL   string `yaml:"sql"`
	File  string `yaml:"file"`
}

// ActorKind selects the authentication level of an actor.
type ActorKind string

const (
	ActorRoot      ActorKind = "root"
	ActorNamespace ActorKind = "namespace"
	ActorDatabase  ActorKind = "database"
	ActorRecord    ActorKind = "record"
	ActorToken     ActorKind = "token"
	ActorHeaders   ActorKind = "headers"
)

// ActorSpec declares an identity tests can act as. Every credential field
// has an _env twin; the literal wins, then the environment variable, then
// the kind-specific default.
type ActorSpec struct {
	Kind         ActorKind         `yaml:"kind"`
	Username     string            `yaml:"username"`
	UsernameEnv  string            `yaml:"username_env"`
	Password     string            `yaml:"password"`
	PasswordEnv  string            `yaml:"password_env"`
	Namespace    string            `yaml:"namespace"`
	NamespaceEnv string            `yaml:"namespace_env"`
	Database     string            `yaml:"database"`
	DatabaseEnv  string            `yaml:"database_env"`
	Access       string            `yaml:"access"`
	AccessEnv    string            `yaml:"access_env"`
	Params       map[string]any    `yaml:"params"`
	Token        string            `yaml:"token"`
	TokenEnv     string            `yaml:"token_env"`
	Headers      map[string]string `yaml:"headers"`
}

// Case kind discriminators.
const (
	KindSQLExpect         = "sql_expect"
	KindPermissionsMatrix = "permissions_matrix"
	KindSchemaMetadata    = "schema_metadata"
	KindSchemaBehavior    = "schema_behavior"
	KindAPIRequest        = "api_request"
)

// CaseHead is the part shared by every case kind.
type CaseHead struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
	Kind string   `yaml:"kind"`
}

// CaseSpec is the tagged union of the five case kinds; exactly one of the
// pointers is non-nil after decoding, selected by the kind field.
type CaseSpec struct {
	CaseHead

	SQLExpect         *SQLExpectCase
	PermissionsMatrix *PermissionsMatrixCase
	SchemaMetadata    *SchemaMetadataCase
	SchemaBehavior    *SchemaBehaviorCase
	APIRequest        *APIRequestCase
}

// UnmarshalYAML peeks at the kind discriminator, then strictly decodes the
// node into the matching concrete case so unknown fields are rejected.
func (c *CaseSpec) UnmarshalYAML(node *yaml.Node) error {
	var head CaseHead
	if err := node.Decode(&head); err != nil {
		return err
	}
	c.CaseHead = head

	switch head.Kind {
	case KindSQLExpect:
		c.SQLExpect = &SQLExpectCase{Allow: true}
		return decodeStrict(node, c.SQLExpect)
	case KindPermissionsMatrix:
		c.PermissionsMatrix = &PermissionsMatrixCase{}
		return decodeStrict(node, c.PermissionsMatrix)
	case KindSchemaMetadata:
		c.SchemaMetadata = &SchemaMetadataCase{}
		return decodeStrict(node, c.SchemaMetadata)
	case KindSchemaBehavior:
		c.SchemaBehavior = &SchemaBehaviorCase{ExpectSuccess: true}
		return decodeStrict(node, c.SchemaBehavior)
	case KindAPIRequest:
		c.APIRequest = &APIRequestCase{Method: "GET"}
		return decodeStrict(node, c.APIRequest)
	case "":
		return fmt.Errorf("case %q: missing kind", head.Name)
	default:
		return fmt.Errorf("case %q: unknown kind %q", head.Name, head.Kind)
	}
}

// decodeStrict round-trips the node through a strict decoder; yaml.Node's own
// Decode has no known-fields mode.
func decodeStrict(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// SQLExpectCase runs one statement and checks its outcome. Allow defaults to
// true; with allow=false the error text must contain ErrorContains and
// ErrorCode when set.
type SQLExpectCase struct {
	CaseHead `yaml:",inline"`

	Actor         string          `yaml:"actor"`
	SQL           string          `yaml:"sql"`
	Allow         bool            `yaml:"allow"`
	ErrorContains string          `yaml:"error_contains"`
	ErrorCode     string          `yaml:"error_code"`
	Assertions    []JSONAssertion `yaml:"assertions"`
}

// PermissionsMatrixCase probes table permissions rule by rule as a non-root
// actor, reseeding the probe record before each rule.
type PermissionsMatrixCase struct {
	CaseHead `yaml:",inline"`

	Actor    string           `yaml:"actor"`
	Table    string           `yaml:"table"`
	RecordID string           `yaml:"record_id"`
	Rules    []PermissionRule `yaml:"rules"`
}

// PermissionRule is one action probe in a permissions matrix.
type PermissionRule struct {
	Action        PermissionAction `yaml:"action"`
	Allow         *bool            `yaml:"allow"`
	SQL           string           `yaml:"sql"`
	ErrorContains string           `yaml:"error_contains"`
}

// Allowed reports the rule's expectation; unset means allow.
func (r PermissionRule) Allowed() bool {
	return r.Allow == nil || *r.Allow
}

// PermissionAction names the operation a permission rule exercises.
type PermissionAction string

const (
	ActionCreate PermissionAction = "create"
	ActionSelect PermissionAction = "select"
	ActionUpdate PermissionAction = "update"
	ActionDelete PermissionAction = "delete"
	ActionQuery  PermissionAction = "query"
)

// SchemaMetadataCase inspects schema metadata, via INFO FOR TABLE when only
// a table is given or via explicit SQL.
type SchemaMetadataCase struct {
	CaseHead `yaml:",inline"`

	Actor      string          `yaml:"actor"`
	Table      string          `yaml:"table"`
	SQL        string          `yaml:"sql"`
	Contains   []string        `yaml:"contains"`
	Assertions []JSONAssertion `yaml:"assertions"`
}

// SchemaBehaviorCase runs setup statements, one action statement whose
// outcome is checked, and optional verification assertions afterwards.
type SchemaBehaviorCase struct {
	CaseHead `yaml:",inline"`

	Actor               string          `yaml:"actor"`
	SetupSQL            []string        `yaml:"setup_sql"`
	ActionSQL           string          `yaml:"action_sql"`
	ExpectSuccess       bool            `yaml:"expect_success"`
	ExpectErrorContains string          `yaml:"expect_error_contains"`
	VerifySQL           string          `yaml:"verify_sql"`
	Assertions          []JSONAssertion `yaml:"assertions"`
}

// APIRequestCase issues an HTTP request against the resolved base URL with
// the actor's headers plus per-case overrides.
type APIRequestCase struct {
	CaseHead `yaml:",inline"`

	Actor            string            `yaml:"actor"`
	Method           string            `yaml:"method"`
	Path             string            `yaml:"path"`
	ExpectedStatus   int               `yaml:"expected_status"`
	Headers          map[string]string `yaml:"headers"`
	Body             any               `yaml:"body"`
	TimeoutMS        int               `yaml:"timeout_ms"`
	BodyAssertions   []JSONAssertion   `yaml:"body_assertions"`
	HeaderAssertions []HeaderAssertion `yaml:"header_assertions"`
}

// JSONAssertion checks one dot-path into a JSON value. Unset checks are
// skipped; a path to a missing value only fails when an existence or value
// check demands otherwise.
type JSONAssertion struct {
	Path     string `yaml:"path"`
	Exists   *bool  `yaml:"exists"`
	Equals   any    `yaml:"equals"`
	Contains string `yaml:"contains"`
	Regex    string `yaml:"regex"`
}

// HeaderAssertion checks one response header, matched case-insensitively.
type HeaderAssertion struct {
	Name     string `yaml:"name"`
	Exists   *bool  `yaml:"exists"`
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
	Regex    string `yaml:"regex"`
}

// LoadedSuite pairs a parsed suite with the file it came from.
type LoadedSuite struct {
	Path string
	Spec SuiteSpec
}

// LoadedSpecs is the full declarative input of a run.
type LoadedSpecs struct {
	Global GlobalConfig
	Suites []LoadedSuite
}

// FilterInput narrows which suites and cases run.
type FilterInput struct {
	SuitePattern string
	CasePattern  string
	Tags         []string
}
