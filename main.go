package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"tt-commander/logging"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := logging.FromEnv(os.Stderr)
	ctx = pslog.ContextWithLogger(ctx, logger)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("tt-commander command failed")
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	port       string
	driver     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "tt-commander",
		Short:         "Control a Tiny Tapeout demo board over USB serial",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: user config dir)")
	root.PersistentFlags().StringVarP(&flags.port, "port", "p", "", "serial port (default: auto-detect)")
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "serial driver: bugst or jacobsa")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newPortsCmd(flags))
	root.AddCommand(newStateCmd(flags))
	root.AddCommand(newTerminalCmd(flags, "repl", "Attach the MicroPython REPL to this terminal", false))
	root.AddCommand(newTerminalCmd(flags, "uart", "Bridge this terminal to the project UART", true))
	root.AddCommand(newFlashCmd(flags))
	root.AddCommand(newBoardCmds(flags)...)
	root.AddCommand(newConfigCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}
