package main

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tt-commander/config"
	"tt-commander/devices"
	"tt-commander/shuttle"
	"tt-commander/types"
	"tt-commander/utils"
)

type stateReport struct {
	Port    string            `yaml:"port"`
	Phase   string            `yaml:"phase"`
	State   types.DeviceState `yaml:"state"`
	Project *types.Project    `yaml:"project,omitempty"`
}

func newStateCmd(flags *globalFlags) *cobra.Command {
	var copyState bool
	var lookup bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the board state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), flags, func(board *devices.Board) error {
				if _, err := sendAndWait(cmd.Context(), board, config.StatusShuttle+"=", board.DumpState); err != nil {
					return err
				}
				report := stateReport{Port: board.Name(), Phase: board.Phase().String(), State: board.State()}
				if lookup && report.State.ShuttleID != "" {
					report.Project = findProject(cmd.Context(), flags, report.State)
				}

				out, err := yaml.Marshal(report)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(out); err != nil {
					return err
				}
				if copyState {
					title := ""
					if report.Project != nil {
						title = report.Project.Title
					}
					summary := utils.FormatStateSummary(report.State, title)
					if err := clipboard.WriteAll(summary); err != nil {
						return fmt.Errorf("clipboard: %w", err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "copied:", summary)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&copyState, "copy", false, "copy a one-line summary to the clipboard")
	cmd.Flags().BoolVar(&lookup, "project", true, "look up the selected project in the shuttle index")
	return cmd
}

func findProject(ctx context.Context, flags *globalFlags, state types.DeviceState) *types.Project {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil
	}
	projects, err := shuttle.NewClient(cfg.Shuttle.IndexURL).Load(ctx, state.ShuttleID)
	if err != nil {
		return nil
	}
	for _, p := range projects {
		if p.Address == state.SelectedDesign {
			return &p
		}
	}
	return nil
}
