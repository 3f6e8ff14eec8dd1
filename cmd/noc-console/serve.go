package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fronthaul-noc/internal/admin"
	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/dashboard"
)

var (
	serveAddr     string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run headless with the HTTP admin surface",
	Long:  "serve refreshes backend data periodically and exposes state, CSV export and Prometheus metrics over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := stderrLogger(cfg)
		orch, cleanup, err := newOrchestrator(cfg, logger, "")
		if err != nil {
			return err
		}
		defer cleanup()

		addr := cfg.Admin.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		col, err := adminSortColumn(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := admin.NewServer(orch, cfg.Correlation.Threshold, col)
		errc := make(chan error, 1)
		go func() {
			if err := srv.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		go refreshLoop(ctx, orch, serveInterval)

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		log.Println("[Main] serve stopped.")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 30*time.Second, "Backend refresh interval (0 loads once)")
}

// adminSortColumn is the default capacity sort of the admin CSV export.
func adminSortColumn(cfg *config.Config) (capacity.Column, error) {
	col, err := capacity.ParseColumn(cfg.Capacity.SortColumn)
	if err != nil {
		return "", fmt.Errorf("capacity.sort_column: %w", err)
	}
	return col, nil
}

// refreshLoop loads once, then forces a refresh every interval until ctx is
// done.
func refreshLoop(ctx context.Context, orch *dashboard.Orchestrator, interval time.Duration) {
	if err := orch.FetchAll(ctx, false); err != nil {
		log.Printf("[Main] initial load failed: %v", err)
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := orch.FetchAll(ctx, true); err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
				log.Printf("[Main] refresh failed: %v", err)
			}
		}
	}
}
