package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fronthaul-noc/internal/logging"
	"fronthaul-noc/internal/tui"
)

var consoleLink string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the interactive terminal console",
	Long:  "console starts the full-screen console with overview, topology, correlation, capacity, traffic and assistant views.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) {
			return fmt.Errorf("console needs a terminal; use the snapshot or export subcommands instead")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logPath := cfg.Logging.File
		if logPath == "" {
			logPath = "noc-console.log"
		}
		logger, closer, err := logging.OpenFile(logPath, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer closer.Close()

		orch, cleanup, err := newOrchestrator(cfg, logger, consoleLink)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		logger.Info("[Main] console starting", "api", cfg.API.BaseURL)
		c := tui.NewConsole(ctx, orch, cfg, logger)
		defer c.Close()
		if err := c.Run(); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("[Main] console stopped")
		return nil
	},
}

func init() {
	consoleCmd.Flags().StringVar(&consoleLink, "link", "", "Initially selected link id")
}
