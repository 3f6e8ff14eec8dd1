package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/correlation"
	"fronthaul-noc/internal/fronthaul"
	"fronthaul-noc/internal/topology"
)

var (
	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true)
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(1, 2)
)

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m model) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", max(m.width, 1))
	body := m.renderBody()
	if m.notice != "" {
		box := noticeStyle.Render(wrap(m.notice, max(m.width/2, 20)) + "\n\n" + dimStyle.Render("enter/esc to dismiss"))
		body = lipgloss.Place(max(m.width, 1), m.graphRows(), lipgloss.Center, lipgloss.Center, box)
	}
	sections := []string{m.renderTabs(), divider, body, divider, m.renderFooter()}
	return strings.Join(sections, "\n")
}

func (m model) renderTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if tab(i) == m.tab {
			parts[i] = activeTab.Render(label)
		} else {
			parts[i] = inactiveTab.Render(label)
		}
	}
	return strings.Join(parts, "  ")
}

func (m model) renderBody() string {
	if !m.snap.Initialized && m.snap.Topology == nil {
		msg := "loading fronthaul data..."
		if m.snap.Err != nil {
			msg = errStyle.Render("backend unavailable: "+m.snap.Err.Error()) + "\n" + dimStyle.Render("press r to retry")
		}
		return lipgloss.Place(max(m.width, 1), m.graphRows(), lipgloss.Center, lipgloss.Center, msg)
	}
	switch m.tab {
	case tabTopology:
		return m.renderTopology()
	case tabCorrelation:
		return m.renderCorrelation()
	case tabCapacity:
		return m.renderCapacity()
	case tabTraffic:
		return m.renderTraffic()
	case tabChat:
		return m.renderChat()
	default:
		return m.renderOverview()
	}
}

func (m model) renderOverview() string {
	var b strings.Builder
	topo := m.snap.Topology
	b.WriteString(titleStyle.Render("Fronthaul network") + "\n")
	fmt.Fprintf(&b, "links %d  cells %d  updated %s\n", len(topo.LinkIDs()), topo.CellCount(), humanize.Time(m.snap.UpdatedAt))
	stats := m.corr.Stats()
	fmt.Fprintf(&b, "correlation @ %.2f: %s\n\n", m.corr.Threshold(), stats.Summary())

	b.WriteString(titleStyle.Render("Insights") + "\n")
	insights := capacity.Insights(m.snap.Capacity, topo)
	if len(insights) == 0 {
		b.WriteString(dimStyle.Render("no capacity data") + "\n")
	}
	for _, in := range insights {
		b.WriteString(wrap(fmt.Sprintf("• %s: %s", in.Title, in.Text), max(m.width-2, 20)) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Links") + "\n")
	if topo != nil {
		for _, l := range topo.Links {
			b.WriteString(m.linkLine(l) + "\n")
		}
	}
	return fitHeight(b.String(), m.graphRows())
}

func (m model) linkLine(l fronthaul.Link) string {
	var values []float64
	for _, p := range capacity.Downsample(m.snap.AllTraffic[l.ID], 24) {
		values = append(values, p.AggregatedGbps)
	}
	marker := " "
	if l.ID == m.snap.SelectedLink {
		marker = "▶"
	}
	return fmt.Sprintf("%s %-10s %2d cells  avg %s Mbps  peak %s Mbps  %s",
		marker, l.ID, len(l.Cells),
		humanize.CommafWithDigits(l.AvgThroughputMbps, 1),
		humanize.CommafWithDigits(l.PeakThroughputMbps, 1),
		capacity.SparklineString(values))
}

func (m model) renderTopology() string {
	frame := m.canvas().Rasterize(m.topo.Paint())
	out := frame.String()
	if n, ok := m.topo.Selected(); ok {
		out = overlayLine(out, m.topologyDetail(n))
	}
	return out
}

func (m model) topologyDetail(n topology.Node) string {
	if n.Kind == topology.KindHub {
		l, _ := m.snap.Topology.Link(n.LinkID)
		return fmt.Sprintf("%s: %d cells, avg %s Mbps, peak %s Mbps", n.Label, len(l.Cells),
			humanize.CommafWithDigits(l.AvgThroughputMbps, 1), humanize.CommafWithDigits(l.PeakThroughputMbps, 1))
	}
	return fmt.Sprintf("cell %s on %s", n.Label, n.LinkID)
}

func (m model) renderCorrelation() string {
	w, h := m.corr.Size()
	var out string
	if m.heatmap {
		hm := correlation.NewHeatmap(m.snap.Correlation, m.corr.Threshold())
		out = m.canvas().Rasterize(hm.Paint(w, h)).String()
		if !hm.Empty() {
			out = overlayLine(out, fmt.Sprintf("heatmap range %.2f..%.2f, below %.2f masked", hm.Min, hm.Max, m.corr.Threshold()))
		}
		return out
	}
	out = m.canvas().Rasterize(m.corr.Paint()).String()
	v := m.corr.View()
	line := fmt.Sprintf("threshold %.2f  %s", m.corr.Threshold(), v.Stats.Summary())
	if v.Selected != "" {
		line += "  selected " + v.Selected
	}
	return overlayLine(out, line)
}

func (m model) renderCapacity() string {
	var b strings.Builder
	if m.filter.Focused() || m.filter.Value() != "" {
		b.WriteString(m.filter.View() + "\n")
	} else {
		b.WriteString(dimStyle.Render("←/→ column  s sort  / filter  e export") + "\n")
	}
	if m.capTable.Len() == 0 {
		b.WriteString(dimStyle.Render("no capacity data"))
		return fitHeight(b.String(), m.graphRows())
	}
	rows := m.capTable.Rows()
	if len(rows) == 0 {
		msg := fmt.Sprintf("no links match %q", m.capTable.Filter())
		if s, ok := m.capTable.Suggestion(); ok {
			msg += fmt.Sprintf(", did you mean %s?", s)
		}
		b.WriteString(errStyle.Render(msg))
		return fitHeight(b.String(), m.graphRows())
	}
	b.WriteString(m.table.View() + "\n")
	fmt.Fprintf(&b, "%d of %d links, mean savings %.1f%%", len(rows), m.capTable.Len(), capacity.MeanSavings(m.snap.Capacity))
	return fitHeight(b.String(), m.graphRows())
}

func (m model) renderTraffic() string {
	w, h := m.corr.Size()
	var series []chartSeries
	if m.compareAll {
		for _, id := range m.snap.Topology.LinkIDs() {
			alpha := 0.5
			if id == m.snap.SelectedLink {
				alpha = 1
			}
			series = append(series, chartSeries{link: id, points: m.snap.AllTraffic[id], alpha: alpha})
		}
	} else {
		series = []chartSeries{{link: m.snap.SelectedLink, points: m.snap.Traffic, alpha: 1}}
	}
	out := m.canvas().Rasterize(trafficChart(series, w, h)).String()
	peak := 0.0
	for _, p := range m.snap.Traffic {
		peak = max(peak, p.AggregatedGbps)
	}
	line := fmt.Sprintf("%s  %d samples  peak %s Gbps  (←/→ link, a compare all)",
		m.snap.SelectedLink, len(m.snap.Traffic), humanize.CommafWithDigits(peak, 2))
	return overlayLine(out, line)
}

func (m model) renderChat() string {
	var b strings.Builder
	if len(m.history) == 0 && !m.chatBusy {
		b.WriteString(dimStyle.Render(wrap("Ask the assistant about links, congestion or buffering. Context from the current view is attached.", max(m.width, 20))))
	} else {
		b.WriteString(m.chatVP.View())
	}
	return fitHeight(b.String(), m.graphRows()-1) + "\n" + m.chatInput.View()
}

func (m model) renderFooter() string {
	if m.uploadInput.Focused() {
		return m.uploadInput.View()
	}
	status := m.status
	if m.snap.Err != nil {
		status = errStyle.Render("error: " + m.snap.Err.Error())
	}
	line := fmt.Sprintf("Loading %s | Data %s | Heatmap %s | Compare %s | v%d",
		indicator(m.snap.Loading), indicator(m.snap.Initialized && m.snap.Err == nil),
		indicator(m.heatmap), indicator(m.compareAll), m.snap.Version)
	if status != "" {
		line += " | " + status
	}
	return line
}

func (m model) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q        quit",
		" tab/1-6  switch view",
		" r        refresh from backend",
		" u        upload dataset",
		" R        reset dataset",
		" h/?      toggle this help view",
		"",
		"Correlation:",
		" +/-      threshold up/down (0.50-0.99)",
		" m        toggle heatmap",
		" n/p      select next/previous cell, esc clears",
		" click    select cell, click background to clear",
		"",
		"Topology:",
		" n/p      select next/previous node, esc clears",
		" click    select hub or cell",
		"",
		"Capacity:",
		" ←/→      choose column, s sort, / filter, e export CSV",
		"",
		"Traffic:",
		" ←/→      previous/next link, a compare all links",
		"",
		"Assistant:",
		" enter    send, esc leaves the prompt",
	}
	return strings.Join(lines, "\n")
}

// fitHeight pads or truncates s to exactly n lines.
func fitHeight(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// overlayLine replaces the first line of a frame with a caption.
func overlayLine(frame, caption string) string {
	lines := strings.Split(frame, "\n")
	if len(lines) == 0 {
		return caption
	}
	lines[0] = dimStyle.Render(caption)
	return strings.Join(lines, "\n")
}
