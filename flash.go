package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tt-commander/devices"
	"tt-commander/firmware"
)

func newFlashCmd(flags *globalFlags) *cobra.Command {
	var offsetFlag string
	cmd := &cobra.Command{
		Use:   "flash <image>",
		Short: "Write a binary or Intel HEX image to the board's SPI flash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := firmware.LoadImage(args[0])
			if err != nil {
				return err
			}
			offset, err := flashOffset(offsetFlag, image.Base)
			if err != nil {
				return err
			}
			out := cmd.ErrOrStderr()
			return withBoard(cmd.Context(), flags, func(board *devices.Board) error {
				err := board.Flash(cmd.Context(), image.Data, offset, func(p devices.FlashProgress) {
					if p.Done {
						fmt.Fprintf(out, "\rflashed %d bytes at 0x%x\n", p.Total, offset)
						return
					}
					fmt.Fprintf(out, "\r%d/%d bytes (%d%%)", p.Written, p.Total, p.Written*100/max(p.Total, 1))
				})
				return err
			})
		},
	}
	cmd.Flags().StringVar(&offsetFlag, "offset", "", "flash offset, decimal or 0x hex (default: HEX base address or 0)")
	return cmd
}

func flashOffset(flag string, base uint32) (uint32, error) {
	if flag == "" {
		return base, nil
	}
	v, err := strconv.ParseUint(flag, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", flag, err)
	}
	return uint32(v), nil
}
