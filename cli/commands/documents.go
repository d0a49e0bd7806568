package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weaselworks/go-stoat/cli/config"
	"github.com/weaselworks/go-stoat/cli/styles"
)

// NewDocumentsCommand creates the documents command: list read-model
// documents of a type, optionally with their raw payloads.
func NewDocumentsCommand(configPath *string) *cobra.Command {
	var showData bool

	cmd := &cobra.Command{
		Use:   "documents <doc-type>",
		Short: "List read-model documents of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}

			adapter, err := openAdapter(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			records, err := adapter.ListDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, styles.Muted.Render("no documents of type "+args[0]))
				return nil
			}

			fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d document(s) of type %s", len(records), args[0])))
			for _, rec := range records {
				fmt.Fprintf(out, "  %s %s\n", rec.Key, styles.Muted.Render(rec.UpdatedAt.Format("2006-01-02 15:04:05")))
				if showData {
					fmt.Fprintf(out, "    %s\n", rec.Data)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showData, "data", false, "Print document payloads")
	return cmd
}
