package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tt-commander/firmware"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the supported firmware range",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tt-commander firmware %s..%s\nlatest: %s\n",
				firmware.MinimumVersion, firmware.LatestVersion, firmware.DownloadURL(firmware.LatestVersion))
			return err
		},
	}
}
