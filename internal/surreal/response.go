package surreal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Error is a failure reported by the server, either at the RPC layer or for
// an individual statement.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("surrealdb: %s (code %d)", e.Message, e.Code)
	}
	return "surrealdb: " + e.Message
}

// StatementResult is the outcome of one statement in a query batch.
type StatementResult struct {
	Status string          `json:"status"`
	Time   string          `json:"time"`
	Result json.RawMessage `json:"result"`
}

// Response is the ordered list of statement results for one query call.
type Response []StatementResult

// Check returns an *Error for the first failed statement, nil when every
// statement succeeded.
func (r Response) Check() error {
	for _, stmt := range r {
		if stmt.Status == "OK" || stmt.Status == "" {
			continue
		}
		var msg string
		if err := json.Unmarshal(stmt.Result, &msg); err != nil {
			msg = string(stmt.Result)
		}
		return &Error{Message: msg}
	}
	return nil
}

// First decodes the first statement's result into a generic JSON value.
// An empty response decodes to nil.
func (r Response) First() (any, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}
	if len(r) == 0 || len(r[0].Result) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(r[0].Result, &value); err != nil {
		return nil, fmt.Errorf("decoding statement result: %w", err)
	}
	return value, nil
}

// Exec runs sql through q and fails on any statement-level error. It is the
// workhorse for schema application where only success matters.
func Exec(ctx context.Context, q Querier, sql string, vars map[string]any) error {
	resp, err := q.Query(ctx, sql, vars)
	if err != nil {
		return err
	}
	return resp.Check()
}

// Value runs sql through q and decodes the first statement's result.
func Value(ctx context.Context, q Querier, sql string, vars map[string]any) (any, error) {
	resp, err := q.Query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	return resp.First()
}
