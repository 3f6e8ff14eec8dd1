package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/logging"
)

var (
	configPath  string
	schemaPath  string
	apiURL      string
	fixturePath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "noc-console",
	Short: "5G fronthaul network operations console",
	Long: "noc-console visualizes fronthaul topology, cell correlation, link capacity and traffic " +
		"served by the fronthaul analysis backend.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to console configuration YAML")
	pf.StringVar(&schemaPath, "schema", "", "Path to CUE schema file (defaults to the embedded schema)")
	pf.StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config and NOC_API_URL)")
	pf.StringVar(&fixturePath, "fixture", "", "Serve data from a recorded JSONL file instead of the backend")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newGateway picks the recorded fixture when --fixture is set, the backend
// client otherwise.
func newGateway(cfg *config.Config, logger *slog.Logger) (api.Gateway, error) {
	if fixturePath != "" {
		logger.Info("[Main] offline mode", "fixture", fixturePath)
		return api.OpenFixture(fixturePath)
	}
	return api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, api.WithLogger(logger)), nil
}

// stderrLogger is used by the non-interactive subcommands.
func stderrLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithLevel(os.Stderr, cfg.Logging.Level)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalSize falls back to 100x40 when out is not a terminal.
func terminalSize(f *os.File) (int, int) {
	if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return 100, 40
}
