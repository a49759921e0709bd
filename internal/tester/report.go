package tester

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RunReport aggregates an entire run.
type RunReport struct {
	StartedAt    string        `json:"started_at"`
	FinishedAt   string        `json:"finished_at"`
	DurationMS   int64         `json:"duration_ms"`
	SuitesTotal  int           `json:"suites_total"`
	SuitesFailed int           `json:"suites_failed"`
	CasesTotal   int           `json:"cases_total"`
	CasesPassed  int           `json:"cases_passed"`
	CasesFailed  int           `json:"cases_failed"`
	Suites       []SuiteReport `json:"suites"`
}

// SuiteReport covers one suite and the isolated namespace/database it ran in.
type SuiteReport struct {
	SuiteFile   string       `json:"suite_file"`
	SuiteName   string       `json:"suite_name"`
	Namespace   string       `json:"namespace"`
	Database    string       `json:"database"`
	DurationMS  int64        `json:"duration_ms"`
	CasesTotal  int          `json:"cases_total"`
	CasesPassed int          `json:"cases_passed"`
	CasesFailed int          `json:"cases_failed"`
	Cases       []CaseReport `json:"cases"`
}

// CaseReport covers one case; Message is set only on failure.
type CaseReport struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	DurationMS int64             `json:"duration_ms"`
	Passed     bool              `json:"passed"`
	Message    string            `json:"message,omitempty"`
	Assertions []AssertionReport `json:"assertions"`
}

// AssertionReport is the finest-grained verdict.
type AssertionReport struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// foldSuiteCounts fills a suite report's counters from its cases.
func foldSuiteCounts(suite *SuiteReport) {
	suite.CasesTotal = len(suite.Cases)
	suite.CasesFailed = 0
	for _, c := range suite.Cases {
		if !c.Passed {
			suite.CasesFailed++
		}
	}
	suite.CasesPassed = suite.CasesTotal - suite.CasesFailed
}

// foldRunCounts fills a run report's counters from its suites.
func foldRunCounts(run *RunReport) {
	run.SuitesTotal = len(run.Suites)
	run.SuitesFailed = 0
	run.CasesTotal = 0
	run.CasesPassed = 0
	run.CasesFailed = 0
	for _, s := range run.Suites {
		if s.CasesFailed > 0 {
			run.SuitesFailed++
		}
		run.CasesTotal += s.CasesTotal
		run.CasesPassed += s.CasesPassed
		run.CasesFailed += s.CasesFailed
	}
}

// RenderHuman writes the run summary. Passing cases stay silent; failing
// cases print their message and every failed assertion.
func RenderHuman(w io.Writer, report RunReport) {
	fmt.Fprintln(w, "Test run summary:")
	fmt.Fprintf(w, "  suites: %d total, %d failed\n", report.SuitesTotal, report.SuitesFailed)
	fmt.Fprintf(w, "  cases: %d total, %d passed, %d failed\n",
		report.CasesTotal, report.CasesPassed, report.CasesFailed)
	fmt.Fprintf(w, "  duration_ms: %d\n", report.DurationMS)

	for _, suite := range report.Suites {
		fmt.Fprintf(w, "suite %s [%s / %s]: %d passed, %d failed\n",
			suite.SuiteName, suite.Namespace, suite.Database,
			suite.CasesPassed, suite.CasesFailed)
		for _, c := range suite.Cases {
			if c.Passed {
				continue
			}
			message := c.Message
			if message == "" {
				message = "unknown failure"
			}
			fmt.Fprintf(w, "  FAIL %s (%s) %s\n", c.Name, c.Kind, message)
			for _, a := range c.Assertions {
				if a.Passed {
					continue
				}
				fmt.Fprintf(w, "    - %s: %s\n", a.Name, a.Message)
			}
		}
	}
}

// WriteJSON writes the report as pretty JSON, creating parent directories.
func WriteJSON(path string, report RunReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory %s: %w", dir, err)
		}
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing report: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report file %s: %w", path, err)
	}
	return nil
}
