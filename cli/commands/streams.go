package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/cli/config"
	"github.com/weaselworks/go-stoat/cli/styles"
)

// NewStreamsCommand creates the streams command: list streams or show one.
func NewStreamsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streams [stream-id]",
		Short: "List streams and their versions",
		Args:  cobra.MaximumNArgs(1),
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

			store := stoat.New(adapter)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				info, err := store.GetStreamInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, styles.Subtitle.Render(info.StreamID))
				fmt.Fprintf(out, "  version:    %d\n", info.Version)
				fmt.Fprintf(out, "  created at: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  updated at: %s\n", info.UpdatedAt.Format("2006-01-02 15:04:05"))
				return nil
			}

			infos, err := store.ListStreams(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(out, styles.Muted.Render("no streams"))
				return nil
			}

			position, err := store.GetLastPosition(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d stream(s), last position %d", len(infos), position)))
			for _, info := range infos {
				fmt.Fprintf(out, "  %s %s\n", info.StreamID, styles.Muted.Render(fmt.Sprintf("v%d", info.Version)))
			}
			return nil
		},
	}
	return cmd
}
