package tester

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"surrealkit/internal/config"
)

// Run is the test command's entry point: load, filter, execute, report.
// A run with failing cases returns an error after the reports are written.
func Run(ctx context.Context, cfg config.DB, opts Options, log *zap.Logger, out io.Writer) error {
	loaded, err := LoadSpecs()
	if err != nil {
		return err
	}

	suites := ApplyFilters(loaded.Suites, FilterInput{
		SuitePattern: opts.Suite,
		CasePattern:  opts.Case,
		Tags:         opts.Tags,
	})
	if len(suites) == 0 {
		return fmt.Errorf("no suites matched the selected filters")
	}

	runner := NewRunner(cfg, opts, loaded.Global, log)
	report, err := runner.Run(ctx, suites)
	if err != nil {
		return err
	}

	RenderHuman(out, report)
	if opts.JSONOut != "" {
		if err := WriteJSON(opts.JSONOut, report); err != nil {
			return err
		}
	}
	if report.CasesFailed > 0 {
		return fmt.Errorf("%d test cases failed", report.CasesFailed)
	}
	return nil
}
