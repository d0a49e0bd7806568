// Package commands provides the CLI command implementations for stoat.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weaselworks/go-stoat/cli/config"
	"github.com/weaselworks/go-stoat/cli/styles"
)

// Version information, set at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand creates the root command for the stoat CLI.
func NewRootCommand() *cobra.Command {
	var noColor bool
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "stoat",
		Short: "Event-sourced storage with inline projections",
		Long: `Stoat stores events in streams and folds them into read-model
documents inside the same transaction as the append.

` + styles.Title.Render("Quick start:") + `

  ` + styles.Code.Render("stoat init") + `        Write a config file and create the schema
  ` + styles.Code.Render("stoat streams") + `     List streams and their versions
  ` + styles.Code.Render("stoat documents") + `   List read-model documents of a type`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				styles.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Path to the config file")

	rootCmd.AddCommand(NewInitCommand(&configPath))
	rootCmd.AddCommand(NewStreamsCommand(&configPath))
	rootCmd.AddCommand(NewDocumentsCommand(&configPath))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(styles.FormatError(err.Error()))
		return err
	}
	return nil
}
