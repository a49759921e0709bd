package cli

import (
	"time"

	"github.com/spf13/cobra"

	"surrealkit/internal/syncer"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		watch            bool
		debounceMS       int
		dryRun           bool
		failFast         bool
		noPrune          bool
		allowSharedPrune bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push database/schema to the live database",
		Long: `Compare the .surql files under database/schema with the server-side
tracking table and apply every changed file. Entities that disappeared from
the schema files are pruned unless --no-prune is set; pruning a database
marked shared requires --allow-shared-prune. With --watch the comparison
repeats until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			reconciler := syncer.New(s.db, s.log)
			opts := syncer.Options{
				Watch:            watch,
				Interval:         time.Duration(debounceMS) * time.Millisecond,
				DryRun:           dryRun,
				FailFast:         failFast,
				Prune:            !noPrune,
				AllowSharedPrune: allowSharedPrune,
			}
			if err := reconciler.Run(cmd.Context(), opts); err != nil {
				return WrapExitError(ExitFailure, "sync failed", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching for schema changes")
	cmd.Flags().IntVar(&debounceMS, "debounce-ms", 250, "watch polling interval in milliseconds")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without applying them")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failing schema file")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "keep stale entities instead of removing them")
	cmd.Flags().BoolVar(&allowSharedPrune, "allow-shared-prune", false, "allow pruning on a database marked shared")
	return cmd
}
