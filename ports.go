package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tt-commander/devices"
)

func newPortsCmd(flags *globalFlags) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and mark Tiny Tapeout boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := devices.ListPorts()
			if err != nil {
				return err
			}
			versions := map[string]string{}
			if probe {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				var names []string
				for _, p := range ports {
					names = append(names, p.Name)
				}
				for _, r := range devices.ProbePorts(cmd.Context(), devices.SerialOpener(cfg.Serial), names, detectTimeout) {
					if r.Err == nil {
						versions[r.Port] = r.Version
					}
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tVID:PID\tPRODUCT\tBOARD\tFIRMWARE")
			for _, p := range ports {
				id := ""
				if p.IsUSB {
					id = p.VID + ":" + p.PID
				}
				board := ""
				if p.IsBoard || versions[p.Name] != "" {
					board = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, id, p.Product, board, versions[p.Name])
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "ask every port for its firmware version")
	return cmd
}
