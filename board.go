package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tt-commander/config"
	"tt-commander/devices"
)

const factoryTestTimeout = 30 * time.Second

func newBoardCmds(flags *globalFlags) []*cobra.Command {
	var clockHz int
	selectCmd := &cobra.Command{
		Use:   "select <index>",
		Short: "Enable the project at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid project index %q", args[0])
			}
			return boardCommand(cmd, flags, config.StatusDesign, func(b *devices.Board) error {
				if clockHz > 0 {
					return b.SelectDesignWithClock(index, clockHz)
				}
				return b.SelectDesign(index)
			})
		},
	}
	selectCmd.Flags().IntVar(&clockHz, "clock", 0, "also clock the project at this frequency in Hz")

	clockCmd := &cobra.Command{
		Use:   "clock <hz>",
		Short: "Clock the project, 0 stops the clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hz, err := strconv.Atoi(args[0])
			if err != nil || hz < 0 {
				return fmt.Errorf("invalid frequency %q", args[0])
			}
			return boardCommand(cmd, flags, config.StatusClockFreq, func(b *devices.Board) error {
				return b.SetClock(hz)
			})
		},
	}

	uiInCmd := &cobra.Command{
		Use:   "ui-in <value>",
		Short: "Drive ui_in from the RP2040, value in decimal, 0x hex or 0b binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid ui_in value %q", args[0])
			}
			return boardCommand(cmd, flags, config.StatusMode, func(b *devices.Board) error {
				if err := b.WriteUIIn(uint8(v)); err != nil {
					return err
				}
				return b.EnableUIIn(true)
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Pulse the project reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardCommand(cmd, flags, config.StatusReset, func(b *devices.Board) error {
				return b.ResetProject()
			})
		},
	}

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Stop the clock and pulse it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardCommand(cmd, flags, config.StatusClockOnce, func(b *devices.Board) error {
				return b.ManualClock()
			})
		},
	}

	bootloaderCmd := &cobra.Command{
		Use:   "bootloader",
		Short: "Reboot the RP2040 into its USB bootloader for a firmware update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), flags, func(b *devices.Board) error {
				return b.Bootloader()
			})
		},
	}

	factoryCmd := &cobra.Command{
		Use:   "factory-test",
		Short: "Run the board self-test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), flags, func(b *devices.Board) error {
				waiter := b.ExpectLine(func(line string) bool {
					return strings.HasPrefix(line, config.StatusFactoryTest+"=") || strings.HasPrefix(line, config.StatusError+"=")
				})
				if err := b.FactoryTest(); err != nil {
					waiter.Cancel()
					return err
				}
				line, err := waiter.Wait(cmd.Context(), factoryTestTimeout)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				if strings.HasPrefix(line, config.StatusError+"=") {
					return fmt.Errorf("factory test failed: %s", strings.TrimPrefix(line, config.StatusError+"="))
				}
				return nil
			})
		},
	}

	return []*cobra.Command{selectCmd, clockCmd, uiInCmd, resetCmd, stepCmd, bootloaderCmd, factoryCmd}
}

// boardCommand runs send on a fresh session and prints the board's reply.
func boardCommand(cmd *cobra.Command, flags *globalFlags, reply string, send func(*devices.Board) error) error {
	return withBoard(cmd.Context(), flags, func(b *devices.Board) error {
		line, err := sendAndWait(cmd.Context(), b, reply+"=", func() error { return send(b) })
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	})
}
