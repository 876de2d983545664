package main

import (
	"context"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"tt-commander/logging"
	"tt-commander/shuttle"
	"tt-commander/types"
	"tt-commander/web"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			hub := logging.NewHub(logger)
			store := shuttle.NewStore(shuttle.NewClient(cfg.Shuttle.IndexURL), logger)
			store.OnChange(func(info types.ShuttleInfo) {
				hub.Broadcast(types.Event{Type: types.EventState, Message: "shuttle " + info.ID})
			})
			if cfg.Shuttle.Factory != "" {
				go store.Load(ctx, cfg.Shuttle.Factory)
			}

			connect := func(ctx context.Context) (web.Board, error) {
				board, err := openBoard(ctx, cfg, hub, store.Load)
				if err != nil {
					return nil, err
				}
				return board, nil
			}
			var current web.Board
			if board, err := connect(ctx); err != nil {
				logger.Warn("board not connected, use reconnect from the page", "err", err)
			} else {
				current = board
			}

			srv := web.NewServer(current, connect, hub, store, logger)
			srv.SetHistorySize(cfg.Board.LogHistory)
			defer srv.Close(context.Background())
			return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
