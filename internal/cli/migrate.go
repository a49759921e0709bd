package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"surrealkit/internal/migrate"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		failFast bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migration files",
		Long: `Apply the .surql files under database/migrations in lexicographic order,
skipping any whose content hash is already recorded in the ledger. Editing
an applied file makes it a new migration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			ledger := migrate.NewLedger(s.db, s.log)
			opts := migrate.Options{FailFast: failFast, DryRun: dryRun}
			if err := ledger.MigrateAll(cmd.Context(), opts); err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", true, "stop at the first failing migration")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

// NewApplyCommand creates the apply command for one-off files.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var track bool

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply a single .surql file",
		Long: `Execute one .surql file against the configured database. With --track the
file is recorded in the migration ledger so migrate skips it later.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			ledger := migrate.NewLedger(s.db, s.log)
			if err := ledger.ApplyOne(cmd.Context(), args[0], track); err != nil {
				return WrapExitError(ExitFailure, "apply failed", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&track, "track", false, "record the file in the migration ledger")
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "List applied migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			records, err := migrate.NewLedger(s.db, s.log).Records(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "reading migration ledger", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", rec.AppliedAt, rec.ID, rec.File)
			}
			return nil
		},
	}
}
