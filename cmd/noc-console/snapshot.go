package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/correlation"
	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/render"
	"fronthaul-noc/internal/topology"
)

var (
	snapView      string
	snapThreshold float64
	snapLink      string
	snapJSON      bool
	snapColor     bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch once and print a report",
	Long:  "snapshot loads all backend data once and prints a summary with an optional rendered view (topology, correlation, heatmap or traffic).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := stderrLogger(cfg)
		orch, cleanup, err := newOrchestrator(cfg, logger, snapLink)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 4*cfg.API.Timeout)
		defer cancel()
		if err := orch.FetchAll(ctx, false); err != nil {
			return err
		}
		snap := orch.Snapshot()
		out := cmd.OutOrStdout()
		if snapJSON {
			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		threshold := cfg.Correlation.Threshold
		if cmd.Flags().Changed("threshold") {
			threshold = snapThreshold
		}
		cols, rows := terminalSize(os.Stdout)
		color := snapColor || isTerminal(os.Stdout)
		return writeReport(out, snap, cfg, snapView, threshold, cols, max(rows-12, 10), color)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapView, "view", "", "Render a view: topology, correlation, heatmap or traffic")
	snapshotCmd.Flags().Float64Var(&snapThreshold, "threshold", 0.7, "Correlation threshold for the correlation and heatmap views")
	snapshotCmd.Flags().StringVar(&snapLink, "link", "", "Link whose traffic is fetched")
	snapshotCmd.Flags().BoolVar(&snapJSON, "json", false, "Print the snapshot as JSON")
	snapshotCmd.Flags().BoolVar(&snapColor, "color", false, "Force colored output")
}

// writeReport prints the summary and, if view is set, the rasterized view.
func writeReport(w io.Writer, snap dashboard.Snapshot, cfg *config.Config, view string, threshold float64, cols, rows int, color bool) error {
	topo := snap.Topology
	fmt.Fprintf(w, "Fronthaul network: %d links, %d cells (updated %s)\n",
		len(topo.LinkIDs()), topo.CellCount(), humanize.Time(snap.UpdatedAt))
	stats := correlation.ComputeStats(correlation.Edges(snap.Correlation, threshold))
	fmt.Fprintf(w, "Correlation @ %.2f: %s\n", threshold, stats.Summary())
	for _, in := range capacity.Insights(snap.Capacity, topo) {
		fmt.Fprintf(w, "  %s: %s\n", in.Title, in.Text)
	}
	if topo != nil {
		fmt.Fprintln(w)
		for _, l := range topo.Links {
			fmt.Fprintf(w, "  %-10s %3d cells  avg %s Mbps  peak %s Mbps\n", l.ID, len(l.Cells),
				humanize.CommafWithDigits(l.AvgThroughputMbps, 1), humanize.CommafWithDigits(l.PeakThroughputMbps, 1))
		}
	}

	cc := cfg.Correlation
	var cmds []render.Cmd
	switch strings.ToLower(view) {
	case "":
		return nil
	case "topology":
		g := topology.NewGraph(cc.Width, cc.Height, cfg.Topology.HubRadius, cfg.Topology.CellRadius)
		g.SetData(topo)
		cmds = g.Paint()
	case "correlation":
		g := correlation.NewGraph(cc.Width, cc.Height, correlation.WithThreshold(threshold))
		g.SetData(snap.Correlation)
		cmds = g.Paint()
	case "heatmap":
		cmds = correlation.NewHeatmap(snap.Correlation, threshold).Paint(cc.Width, cc.Height)
	case "traffic":
		fmt.Fprintf(w, "\nTraffic %s: %d samples\n", snap.SelectedLink, len(snap.Traffic))
		var values []float64
		for _, p := range capacity.Downsample(snap.Traffic, max(cols-2, 10)) {
			values = append(values, p.AggregatedGbps)
		}
		fmt.Fprintln(w, capacity.SparklineString(values))
		return nil
	default:
		return fmt.Errorf("unknown view %q", view)
	}
	frame := render.NewCanvas(cc.Width, cc.Height, cols, rows).Rasterize(cmds)
	fmt.Fprintln(w)
	if color {
		fmt.Fprintln(w, frame.String())
	} else {
		fmt.Fprintln(w, frame.Plain())
	}
	return nil
}
