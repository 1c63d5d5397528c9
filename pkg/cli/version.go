package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// The store is not needed to print a version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vidpipe version %s\n", cliVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", cliGitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  Built:  %s\n", cliBuildDate)
		},
	}
}
