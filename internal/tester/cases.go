package tester

import (
	"context"
	"fmt"
	"strings"

	"surrealkit/internal/surreal"
)

type sqlOutcome struct {
	value any
	err   error
}

func execSQL(ctx context.Context, q surreal.Querier, sql string) sqlOutcome {
	value, err := surreal.Value(ctx, q, sql, nil)
	return sqlOutcome{value: value, err: err}
}

// runCase dispatches one case. A returned error is a configuration problem;
// the runner turns it into a failing report.
func runCase(ctx context.Context, c CaseSpec, actors map[string]ActorSession, baseURL string, timeoutMS int) (CaseReport, error) {
	switch {
	case c.SQLExpect != nil:
		return runSQLExpect(ctx, c, c.SQLExpect, actors)
	case c.PermissionsMatrix != nil:
		return runPermissionsMatrix(ctx, c, c.PermissionsMatrix, actors)
	case c.SchemaMetadata != nil:
		return runSchemaMetadata(ctx, c, c.SchemaMetadata, actors)
	case c.SchemaBehavior != nil:
		return runSchemaBehavior(ctx, c, c.SchemaBehavior, actors)
	case c.APIRequest != nil:
		return runAPIRequest(ctx, c, c.APIRequest, actors, baseURL, timeoutMS)
	default:
		return CaseReport{}, fmt.Errorf("case %q: no body decoded", c.Name)
	}
}

func runSQLExpect(ctx context.Context, c CaseSpec, spec *SQLExpectCase, actors map[string]ActorSession) (CaseReport, error) {
	actor, err := requireActor(actors, actorNameOrDefault(spec.Actor))
	if err != nil {
		return CaseReport{}, err
	}
	outcome := execSQL(ctx, actor.DB, spec.SQL)
	return reportSQLExpect(c.Name, c.Kind, outcome, spec.Allow, spec.ErrorContains, spec.ErrorCode, spec.Assertions)
}

func runPermissionsMatrix(ctx context.Context, c CaseSpec, spec *PermissionsMatrixCase, actors map[string]ActorSession) (CaseReport, error) {
	if len(spec.Rules) == 0 {
		return CaseReport{}, fmt.Errorf("permissions_matrix case '%s' has no rules", c.Name)
	}
	actor, err := requireActor(actors, actorNameOrDefault(spec.Actor))
	if err != nil {
		return CaseReport{}, err
	}
	root, err := requireActor(actors, "root")
	if err != nil {
		return CaseReport{}, err
	}
	recordID := spec.RecordID
	if recordID == "" {
		recordID = "perm_record"
	}

	var assertions []AssertionReport
	for idx, rule := range spec.Rules {
		// Reseed the probe record so earlier deletes don't skew later rules.
		seedSQL := fmt.Sprintf("UPSERT %s:%s MERGE { __surrealkit_perm_seed: true };", spec.Table, recordID)
		_ = execSQL(ctx, root.DB, seedSQL)

		var sql string
		switch rule.Action {
		case ActionCreate:
			sql = fmt.Sprintf("CREATE %s:%s_create_%d CONTENT { marker: 'perm' };", spec.Table, recordID, idx)
		case ActionSelect:
			sql = fmt.Sprintf("SELECT * FROM %s:%s;", spec.Table, recordID)
		case ActionUpdate:
			sql = fmt.Sprintf("UPDATE %s:%s SET marker = 'updated_%d';", spec.Table, recordID, idx)
		case ActionDelete:
			sql = fmt.Sprintf("DELETE %s:%s;", spec.Table, recordID)
		case ActionQuery:
			if rule.SQL == "" {
				return CaseReport{}, fmt.Errorf("permissions_matrix action=query in '%s' requires sql", c.Name)
			}
			sql = rule.SQL
		default:
			return CaseReport{}, fmt.Errorf("permissions_matrix case '%s': unknown action %q", c.Name, rule.Action)
		}

		outcome := execSQL(ctx, actor.DB, sql)
		report := evaluateOutcome(fmt.Sprintf("rule_%d", idx+1), outcome, rule.Allowed(), rule.ErrorContains, "")
		if !report.Passed {
			report.Message = fmt.Sprintf("%s; sql=%s", report.Message, sql)
		}
		assertions = append(assertions, report)
	}

	passed := allPassed(assertions)
	report := CaseReport{Name: c.Name, Kind: c.Kind, Passed: passed, Assertions: assertions}
	if !passed {
		report.Message = "one or more permission rules failed"
	}
	return report, nil
}

func runSchemaMetadata(ctx context.Context, c CaseSpec, spec *SchemaMetadataCase, actors map[string]ActorSession) (CaseReport, error) {
	actor, err := requireActor(actors, actorNameOrDefault(spec.Actor))
	if err != nil {
		return CaseReport{}, err
	}
	sql := spec.SQL
	if sql == "" {
		if spec.Table == "" {
			return CaseReport{}, fmt.Errorf("schema_metadata case '%s' requires either table or sql", c.Name)
		}
		sql = fmt.Sprintf("INFO FOR TABLE %s;", spec.Table)
	}
	outcome := execSQL(ctx, actor.DB, sql)
	if outcome.err != nil {
		return CaseReport{}, outcome.err
	}
	text := jsonText(outcome.value)

	var assertions []AssertionReport
	for idx, needle := range spec.Contains {
		assertions = append(assertions, AssertionReport{
			Name:    fmt.Sprintf("contains_%d", idx+1),
			Passed:  containsText(text, needle),
			Message: fmt.Sprintf("expected metadata to contain '%s'", needle),
		})
	}
	for idx, a := range spec.Assertions {
		report, err := assertJSONValue(outcome.value, a, idx)
		if err != nil {
			return CaseReport{}, err
		}
		assertions = append(assertions, report)
	}

	passed := allPassed(assertions)
	report := CaseReport{Name: c.Name, Kind: c.Kind, Passed: passed, Assertions: assertions}
	if !passed {
		report.Message = "schema metadata assertions failed"
	}
	return report, nil
}

func runSchemaBehavior(ctx context.Context, c CaseSpec, spec *SchemaBehaviorCase, actors map[string]ActorSession) (CaseReport, error) {
	actor, err := requireActor(actors, actorNameOrDefault(spec.Actor))
	if err != nil {
		return CaseReport{}, err
	}
	for _, sql := range spec.SetupSQL {
		if outcome := execSQL(ctx, actor.DB, sql); outcome.err != nil {
			return CaseReport{}, fmt.Errorf("schema_behavior setup failed in case '%s': %w", c.Name, outcome.err)
		}
	}

	outcome := execSQL(ctx, actor.DB, spec.ActionSQL)
	report, err := reportSQLExpect(c.Name, c.Kind, outcome, spec.ExpectSuccess, spec.ExpectErrorContains, "", nil)
	if err != nil {
		return CaseReport{}, err
	}

	if report.Passed && len(spec.Assertions) > 0 {
		verifySQL := spec.VerifySQL
		if verifySQL == "" {
			verifySQL = spec.ActionSQL
		}
		verify := execSQL(ctx, actor.DB, verifySQL)
		if verify.err != nil {
			return CaseReport{}, verify.err
		}
		for idx, a := range spec.Assertions {
			assertion, err := assertJSONValue(verify.value, a, idx)
			if err != nil {
				return CaseReport{}, err
			}
			report.Assertions = append(report.Assertions, assertion)
		}
		report.Passed = allPassed(report.Assertions)
		if !report.Passed {
			report.Message = "schema behavior assertions failed"
		}
	}

	return report, nil
}

func runAPIRequest(ctx context.Context, c CaseSpec, spec *APIRequestCase, actors map[string]ActorSession, baseURL string, timeoutMS int) (CaseReport, error) {
	actor, err := requireActor(actors, actorNameOrDefault(spec.Actor))
	if err != nil {
		return CaseReport{}, err
	}
	if baseURL == "" {
		return CaseReport{}, fmt.Errorf("api_request case '%s' requires base URL (--base-url, config default, or env)", c.Name)
	}
	result, err := executeAPICase(ctx, baseURL, spec, actor.Headers, timeoutMS)
	if err != nil {
		return CaseReport{}, err
	}

	passed := allPassed(result.Assertions)
	report := CaseReport{Name: c.Name, Kind: c.Kind, Passed: passed, Assertions: result.Assertions}
	if !passed {
		report.Message = fmt.Sprintf("api assertions failed (status=%d)", result.Status)
	}
	return report, nil
}

// reportSQLExpect folds an execution outcome plus optional JSON assertions
// into a case report under allow/deny expectations.
func reportSQLExpect(name, kind string, outcome sqlOutcome, allow bool, errorContains, errorCode string, assertions []JSONAssertion) (CaseReport, error) {
	report := CaseReport{Name: name, Kind: kind}

	switch {
	case allow && outcome.err == nil:
		report.Assertions = append(report.Assertions, AssertionReport{
			Name:    "outcome",
			Passed:  true,
			Message: "query succeeded as expected",
		})
		for idx, a := range assertions {
			assertion, err := assertJSONValue(outcome.value, a, idx)
			if err != nil {
				return CaseReport{}, err
			}
			report.Assertions = append(report.Assertions, assertion)
		}
		report.Passed = allPassed(report.Assertions)
		if !report.Passed {
			report.Message = "one or more assertions failed"
		}
	case allow:
		report.Passed = false
		report.Message = fmt.Sprintf("expected success, got error: %s", outcome.err)
		report.Assertions = append(report.Assertions, AssertionReport{
			Name: "outcome", Passed: false, Message: report.Message,
		})
	case outcome.err == nil:
		report.Passed = false
		report.Message = "expected failure, query succeeded"
		report.Assertions = append(report.Assertions, AssertionReport{
			Name: "outcome", Passed: false, Message: report.Message,
		})
	default:
		assertion := evaluateOutcome("outcome", outcome, false, errorContains, errorCode)
		report.Passed = assertion.Passed
		if !report.Passed {
			report.Message = assertion.Message
		}
		report.Assertions = append(report.Assertions, assertion)
	}

	return report, nil
}

// evaluateOutcome judges a single execution against an allow/deny
// expectation; on expected failure the error text must contain both needles.
func evaluateOutcome(label string, outcome sqlOutcome, allow bool, errorContains, errorCode string) AssertionReport {
	switch {
	case allow && outcome.err == nil:
		return AssertionReport{Name: label, Passed: true, Message: "query succeeded as expected"}
	case allow:
		return AssertionReport{
			Name:    label,
			Passed:  false,
			Message: fmt.Sprintf("expected success, got error: %s", outcome.err),
		}
	case outcome.err == nil:
		return AssertionReport{Name: label, Passed: false, Message: "expected failure, query succeeded"}
	default:
		text := outcome.err.Error()
		passed := (errorContains == "" || containsText(text, errorContains)) &&
			(errorCode == "" || containsText(text, errorCode))
		message := "query failed as expected"
		if !passed {
			message = fmt.Sprintf("error mismatch, got '%s'", text)
		}
		return AssertionReport{Name: label, Passed: passed, Message: message}
	}
}

func allPassed(assertions []AssertionReport) bool {
	for _, a := range assertions {
		if !a.Passed {
			return false
		}
	}
	return true
}

func containsText(haystack, needle string) bool {
	return needle == "" || strings.Contains(haystack, needle)
}
