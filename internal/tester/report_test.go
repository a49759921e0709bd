package tester

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() RunReport {
	smoke := SuiteReport{
		SuiteFile:  "database/tests/suites/a_smoke.yaml",
		SuiteName:  "smoke",
		Namespace:  "db_sk_test_r1_smoke",
		Database:   "test_sk_test_r1_smoke",
		DurationMS: 500,
		Cases: []CaseReport{
			{Name: "ping", Kind: KindSchemaMetadata, DurationMS: 10, Passed: true,
				Assertions: []AssertionReport{{Name: "contains_1", Passed: true, Message: "expected metadata to contain '_migration'"}}},
		},
	}
	auth := SuiteReport{
		SuiteFile:  "database/tests/suites/b_auth.yaml",
		SuiteName:  "auth",
		Namespace:  "db_sk_test_r1_auth",
		Database:   "test_sk_test_r1_auth",
		DurationMS: 1000,
		Cases: []CaseReport{
			{Name: "select own record", Kind: KindSQLExpect, DurationMS: 20, Passed: true,
				Assertions: []AssertionReport{{Name: "outcome", Passed: true, Message: "query succeeded as expected"}}},
			{Name: "denied delete", Kind: KindPermissionsMatrix, DurationMS: 30, Passed: false,
				Message: "one or more permission rules failed",
				Assertions: []AssertionReport{
					{Name: "rule_1", Passed: false, Message: "expected failure, query succeeded; sql=DELETE user:perm_record;"},
					{Name: "rule_2", Passed: true, Message: "query failed as expected"},
				}},
		},
	}
	foldSuiteCounts(&smoke)
	foldSuiteCounts(&auth)

	run := RunReport{
		StartedAt:  "2026-01-02T03:04:05Z",
		FinishedAt: "2026-01-02T03:04:06Z",
		DurationMS: 1500,
		Suites:     []SuiteReport{smoke, auth},
	}
	foldRunCounts(&run)
	return run
}

func TestFoldCounts(t *testing.T) {
	run := sampleReport()

	assert.Equal(t, 2, run.SuitesTotal)
	assert.Equal(t, 1, run.SuitesFailed)
	assert.Equal(t, 3, run.CasesTotal)
	assert.Equal(t, 2, run.CasesPassed)
	assert.Equal(t, 1, run.CasesFailed)

	auth := run.Suites[1]
	assert.Equal(t, 2, auth.CasesTotal)
	assert.Equal(t, 1, auth.CasesPassed)
	assert.Equal(t, 1, auth.CasesFailed)
}

func TestRenderHumanGolden(t *testing.T) {
	var buf bytes.Buffer
	RenderHuman(&buf, sampleReport())

	g := goldie.New(t)
	g.Assert(t, "human_report", buf.Bytes())
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, WriteJSON(path, sampleReport()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "\n"))

	var decoded RunReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 3, decoded.CasesTotal)
	assert.Equal(t, "auth", decoded.Suites[1].SuiteName)
	assert.Equal(t, "one or more permission rules failed", decoded.Suites[1].Cases[1].Message)
}
