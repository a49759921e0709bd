package cli

import (
	"github.com/spf13/cobra"

	"surrealkit/internal/tester"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	var opts tester.Options

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the declarative test suites",
		Long: `Load database/tests/config.yaml plus every suite under
database/tests/suites, run each suite against its own namespace and
database, and print a report. A non-zero exit code means at least one
case failed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(rootOpts, cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "building logger", err)
			}
			defer func() { _ = log.Sync() }()

			if err := tester.Run(cmd.Context(), cfg, opts, log, cmd.OutOrStdout()); err != nil {
				return WrapExitError(ExitFailure, "test run failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Suite, "suite", "", "glob matching suite names or file paths")
	cmd.Flags().StringVar(&opts.Case, "case", "", "glob matching case names")
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "only run suites or cases carrying every listed tag")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop after the first failing case")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of suites to run concurrently")
	cmd.Flags().StringVar(&opts.JSONOut, "json-out", "", "also write the report as JSON to this path")
	cmd.Flags().BoolVar(&opts.NoSetup, "no-setup", false, "skip bootstrap schema before each suite")
	cmd.Flags().BoolVar(&opts.NoSync, "no-sync", false, "skip schema sync before each suite")
	cmd.Flags().BoolVar(&opts.NoSeed, "no-seed", false, "skip the seed file before each suite")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "HTTP base URL for api_request cases")
	cmd.Flags().IntVar(&opts.Timeout, "timeout-ms", 0, "per-case timeout in milliseconds")
	cmd.Flags().BoolVar(&opts.KeepDB, "keep-db", false, "keep the per-suite database after the run")
	return cmd
}
