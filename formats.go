package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gdrive-transfer/transfer"
	"gdrive-transfer/tui"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported formats and their MIME types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), tui.Formats(transfer.DefaultTables()))
			return nil
		},
	}
}
