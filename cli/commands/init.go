package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weaselworks/go-stoat/cli/config"
	"github.com/weaselworks/go-stoat/cli/styles"
)

// NewInitCommand creates the init command: write a config file and create
// the storage schema.
func NewInitCommand(configPath *string) *cobra.Command {
	var backend string
	var dsn string
	var schema string
	var skipSchema bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a stoat project",
		Long:  "Writes a config file and creates the streams, events and documents tables in the selected backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*configPath); err == nil {
				return fmt.Errorf("%s already exists", *configPath)
			}

			cfg := config.DefaultConfig()
			if backend != "" {
				cfg.Storage.Backend = backend
			}
			if dsn != "" {
				cfg.Storage.DSN = dsn
			}
			if schema != "" {
				cfg.Storage.Schema = schema
			}

			if err := cfg.Save(*configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.FormatSuccess("wrote "+*configPath))

			if skipSchema || cfg.Storage.Backend == config.BackendMemory {
				return nil
			}

			adapter, err := openAdapter(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			if err := adapter.Initialize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.FormatSuccess("created storage schema"))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Storage backend: memory, sqlite or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Connection string (file path for sqlite, URL for postgres)")
	cmd.Flags().StringVar(&schema, "schema", "", "Postgres schema name")
	cmd.Flags().BoolVar(&skipSchema, "skip-schema", false, "Write the config file without touching the database")

	return cmd
}
