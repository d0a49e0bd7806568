package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/cli/styles"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.Title.Render("stoat "+stoat.Version))
			fmt.Fprintf(out, "  cli:        %s\n", Version)
			fmt.Fprintf(out, "  commit:     %s\n", Commit)
			fmt.Fprintf(out, "  built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
