package tester

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"*", "abc", true},
		{"*", "", true},
		{"a*", "abc", true},
		{"a*", "bca", false},
		{"a?c", "abc", true},
		{"a?d", "abc", false},
		{"*smoke*", "database/tests/suites/smoke.yaml", true},
		{"auth", "auth", true},
		{"auth", "auth2", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, globMatch(tc.pattern, tc.text),
			"pattern %q vs %q", tc.pattern, tc.text)
	}
}

func suiteWithCases(name string, tags []string, cases ...CaseSpec) LoadedSuite {
	return LoadedSuite{
		Path: "database/tests/suites/" + name + ".yaml",
		Spec: SuiteSpec{Name: name, Tags: tags, Cases: cases},
	}
}

func namedCase(name string, tags ...string) CaseSpec {
	return CaseSpec{CaseHead: CaseHead{Name: name, Tags: tags, Kind: KindSQLExpect}}
}

func TestApplyFiltersBySuitePattern(t *testing.T) {
	suites := []LoadedSuite{
		suiteWithCases("auth", nil, namedCase("login")),
		suiteWithCases("smoke", nil, namedCase("ping")),
	}

	got := ApplyFilters(suites, FilterInput{SuitePattern: "auth"})
	assert.Len(t, got, 1)
	assert.Equal(t, "auth", got[0].Spec.Name)

	// The pattern also matches against the suite file path.
	got = ApplyFilters(suites, FilterInput{SuitePattern: "*smoke.yaml"})
	assert.Len(t, got, 1)
	assert.Equal(t, "smoke", got[0].Spec.Name)
}

func TestApplyFiltersByCasePatternDropsEmptySuites(t *testing.T) {
	suites := []LoadedSuite{
		suiteWithCases("auth", nil, namedCase("login_ok"), namedCase("login_denied")),
		suiteWithCases("smoke", nil, namedCase("ping")),
	}

	got := ApplyFilters(suites, FilterInput{CasePattern: "login*"})
	assert.Len(t, got, 1)
	assert.Len(t, got[0].Spec.Cases, 2)
}

func TestApplyFiltersByTags(t *testing.T) {
	suites := []LoadedSuite{
		suiteWithCases("auth", []string{"slow"}, namedCase("login"), namedCase("probe", "perm")),
		suiteWithCases("smoke", nil, namedCase("ping", "fast")),
	}

	// A tag can be satisfied at the suite or the case level.
	got := ApplyFilters(suites, FilterInput{Tags: []string{"slow"}})
	assert.Len(t, got, 1)
	assert.Len(t, got[0].Spec.Cases, 2)

	// Every requested tag must match.
	got = ApplyFilters(suites, FilterInput{Tags: []string{"slow", "perm"}})
	assert.Len(t, got, 1)
	assert.Len(t, got[0].Spec.Cases, 1)
	assert.Equal(t, "probe", got[0].Spec.Cases[0].Name)

	got = ApplyFilters(suites, FilterInput{Tags: []string{"missing"}})
	assert.Empty(t, got)
}
