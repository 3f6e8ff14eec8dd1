package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fronthaul-noc/internal/admin"
	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/dashboard"
)

var (
	replayInput string
	replaySpeed float64
	replayServe string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a snapshot recording",
	Long:  "replay feeds recorded snapshots back through the orchestrator into the configured sinks, optionally serving them over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := stderrLogger(cfg)
		obs, cleanup, err := newObservers(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		fx := api.NewFixtureGateway(api.Recording{})
		opts := []dashboard.Option{dashboard.WithLogger(logger)}
		for _, o := range obs {
			opts = append(opts, dashboard.WithObserver(o))
		}
		orch := dashboard.New(fx, opts...)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if replayServe != "" {
			col, err := adminSortColumn(cfg)
			if err != nil {
				return err
			}
			srv := admin.NewServer(orch, cfg.Correlation.Threshold, col)
			go func() {
				if err := srv.Start(ctx, replayServe); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[Main] admin server failed", "err", err)
				}
			}()
		}

		out := cmd.OutOrStdout()
		n := 0
		err = api.ReplayLogFile(ctx, replayInput, func(rec api.Recording) error {
			n++
			return replayRecording(ctx, orch, fx, rec, func(s dashboard.Snapshot) {
				fmt.Fprintf(out, "%s  %s  links=%d cells=%d capacity=%d traffic=%d\n",
					rec.RecordedAt.Format("2006-01-02T15:04:05Z07:00"), rec.ID,
					len(s.Topology.LinkIDs()), s.Topology.CellCount(), len(s.Capacity), len(s.AllTraffic))
			})
		}, replaySpeed)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("[Main] replay finished", "records", n)
		if replayServe != "" && ctx.Err() == nil {
			logger.Info("[Main] serving final state until interrupted", "addr", replayServe)
			<-ctx.Done()
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to snapshot recording (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().StringVar(&replayServe, "serve", "", "Also serve the replayed state on this address")
	replayCmd.MarkFlagRequired("input")
}

// replayRecording loads rec into the fixture and forces a refresh so every
// observer sees it.
func replayRecording(ctx context.Context, orch *dashboard.Orchestrator, fx *api.FixtureGateway, rec api.Recording, report func(dashboard.Snapshot)) error {
	fx.Load(rec)
	if err := orch.FetchAll(ctx, true); err != nil {
		return fmt.Errorf("replay %s: %w", rec.ID, err)
	}
	report(orch.Snapshot())
	return nil
}
