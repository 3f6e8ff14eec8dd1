package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/fronthaul"
)

var (
	exportOutput string
	exportSort   string
	exportAsc    bool
	exportFilter string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the capacity summary as CSV",
	Long:  "export fetches the capacity summary and writes it as CSV, sorted and filtered like the console table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sortBy := cfg.Capacity.SortColumn
		if exportSort != "" {
			sortBy = exportSort
		}
		col, err := capacity.ParseColumn(sortBy)
		if err != nil {
			return err
		}
		gw, err := newGateway(cfg, stderrLogger(cfg))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
		defer cancel()
		records, err := gw.CapacitySummary(ctx)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			defer f.Close()
			w = f
		}
		n, err := exportCapacity(w, records, col, exportAsc, exportFilter)
		if err != nil {
			return err
		}
		if w != cmd.OutOrStdout() {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows to %s\n", n, exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default STDOUT)")
	exportCmd.Flags().StringVar(&exportSort, "sort", "", "Sort column (default from config)")
	exportCmd.Flags().BoolVar(&exportAsc, "asc", false, "Sort ascending")
	exportCmd.Flags().StringVar(&exportFilter, "filter", "", "Case-insensitive link id filter")
}

// exportCapacity writes records through the same table logic the console uses.
func exportCapacity(w io.Writer, records []fronthaul.CapacityRecord, col capacity.Column, asc bool, filter string) (int, error) {
	t := capacity.NewTable(records, col)
	if asc {
		t.SortBy(col)
	}
	t.SetFilter(filter)
	rows := t.Rows()
	if err := capacity.WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
