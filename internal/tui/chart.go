package tui

import (
	"fmt"
	"math"

	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/fronthaul"
	"fronthaul-noc/internal/render"
)

const chartMargin = 40

type chartSeries struct {
	link   string
	points []fronthaul.TrafficPoint
	alpha  float64
}

// trafficChart plots series as polylines over a width x height area. Time
// runs left to right and Gbps bottom to top, both from the data range.
func trafficChart(series []chartSeries, width, height float64) []render.Cmd {
	minT, maxT, maxV := math.Inf(1), math.Inf(-1), 0.0
	n := 0
	for i := range series {
		series[i].points = capacity.Downsample(series[i].points, capacity.MaxChartPoints)
		for _, p := range series[i].points {
			minT = math.Min(minT, p.TimeSeconds)
			maxT = math.Max(maxT, p.TimeSeconds)
			maxV = math.Max(maxV, p.AggregatedGbps)
			n++
		}
	}
	if n == 0 {
		return []render.Cmd{render.Text(render.Point{X: width * 0.35, Y: height / 2}, "no traffic data", render.Gray, 1)}
	}
	if maxT == minT {
		maxT = minT + 1
	}
	if maxV <= 0 {
		maxV = 1
	}
	x0, y0 := float64(chartMargin), height-chartMargin
	x1, y1 := width-chartMargin/2, float64(chartMargin)/2
	at := func(p fronthaul.TrafficPoint) render.Point {
		return render.Point{
			X: x0 + (p.TimeSeconds-minT)/(maxT-minT)*(x1-x0),
			Y: y0 - p.AggregatedGbps/maxV*(y0-y1),
		}
	}

	cmds := []render.Cmd{
		render.Line(render.Point{X: x0, Y: y0}, render.Point{X: x1, Y: y0}, render.Gray, 1),
		render.Line(render.Point{X: x0, Y: y0}, render.Point{X: x0, Y: y1}, render.Gray, 1),
		render.Text(render.Point{X: 0, Y: y1}, fmt.Sprintf("%.1f", maxV), render.Gray, 1),
		render.Text(render.Point{X: 0, Y: y0}, "0", render.Gray, 1),
		render.Text(render.Point{X: x0, Y: height - chartMargin/4}, fmt.Sprintf("%.0fs", minT), render.Gray, 1),
		render.Text(render.Point{X: x1 - chartMargin, Y: height - chartMargin/4}, fmt.Sprintf("%.0fs", maxT), render.Gray, 1),
	}
	for _, s := range series {
		c := render.PaletteColor(s.link)
		for i := 1; i < len(s.points); i++ {
			cmds = append(cmds, render.Line(at(s.points[i-1]), at(s.points[i]), c, s.alpha).WithID(s.link))
		}
		if len(s.points) == 1 {
			cmds = append(cmds, render.Circle(at(s.points[0]), 3, true, c, s.alpha).WithID(s.link))
		}
	}
	return cmds
}
