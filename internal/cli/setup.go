package cli

import (
	"github.com/spf13/cobra"

	"surrealkit/internal/setup"
)

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the toolkit's tracking tables",
		Long: `Run database/setup.surql (creating it from the built-in default when
missing) and define the migration-ledger and sync-tracking tables. All
statements use OVERWRITE, so repeated runs are harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := setup.EnsureBootstrapSchema(cmd.Context(), s.db); err != nil {
				return WrapExitError(ExitFailure, "setup failed", err)
			}
			s.log.Info("setup complete")
			return nil
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "seed",
		Short:         "Run the project seed script",
		Long:          `Execute database/seed.surql against the configured database. A missing seed file is an error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := setup.ApplySeed(cmd.Context(), s.db); err != nil {
				return WrapExitError(ExitFailure, "seed failed", err)
			}
			s.log.Info("seed applied")
			return nil
		},
	}
}
