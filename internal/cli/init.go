package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"surrealkit/internal/scaffold"
)

// NewInitCommand creates the init command. It works offline: no database
// connection is made.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold the database directory layout",
		Long: `Create the database/ directory tree with schema, migrations, state and
test directories, plus default setup, seed and test files. Existing files
are left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := scaffold.Init()
			if err != nil {
				return WrapExitError(ExitCommandError, "scaffolding project", err)
			}
			for _, dir := range res.CreatedDirs {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s/\n", dir)
			}
			for _, file := range res.CreatedFiles {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", file)
			}
			for _, file := range res.SkippedFiles {
				fmt.Fprintf(cmd.OutOrStdout(), "kept    %s\n", file)
			}
			return nil
		},
	}
}
