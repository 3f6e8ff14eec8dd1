package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/fronthaul"
)

type fakeProgram struct {
	msgs []tea.Msg
}

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func testRecording() api.Recording {
	return api.Recording{
		ID: "rec-tui",
		Topology: &fronthaul.Topology{Links: []fronthaul.Link{
			{ID: "Link_A", Cells: []string{"1", "2"}, AvgThroughputMbps: 900, PeakThroughputMbps: 2500},
			{ID: "Link_B", Cells: []string{"3"}, AvgThroughputMbps: 400, PeakThroughputMbps: 12000},
		}},
		Correlation: &fronthaul.CorrelationMatrix{
			Cells:  []string{"1", "2", "3"},
			Values: [][]float64{{1, 0.9, 0.1}, {0.9, 1, 0.3}, {0.1, 0.3, 1}},
		},
		Capacity: []fronthaul.CapacityRecord{
			{LinkID: "Link_A", AvgGbps: 1, PeakGbps: 3, P95Gbps: 2.5, CapacityNoBufferGbps: 3, CapacityWithBufferGbps: 2},
			{LinkID: "Link_B", AvgGbps: 2, PeakGbps: 12, P95Gbps: 8, CapacityNoBufferGbps: 12, CapacityWithBufferGbps: 9},
		},
		Traffic: []fronthaul.TrafficPoint{
			{TimeSeconds: 0, LinkID: "Link_A", AggregatedGbps: 1},
			{TimeSeconds: 1, LinkID: "Link_A", AggregatedGbps: 2},
			{TimeSeconds: 0, LinkID: "Link_B", AggregatedGbps: 4},
		},
	}
}

// loadedModel returns a sized model holding a settled snapshot.
func loadedModel(t *testing.T) model {
	t.Helper()
	orch := dashboard.New(api.NewFixtureGateway(testRecording()))
	if err := orch.FetchAll(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	cfg := config.Default()
	cfg.Capacity.ExportPath = filepath.Join(t.TempDir(), "capacity.csv")
	m := newModel(context.Background(), orch, cfg, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 44})
	m = next.(model)
	next, _ = m.Update(snapshotMsg{orch.Snapshot()})
	return next.(model)
}

func press(m model, keys ...string) (model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(model)
	}
	return m, cmd
}

func TestConsoleForwardsSnapshots(t *testing.T) {
	fp := &fakeProgram{}
	c := &Console{program: fp}
	c.OnSnapshot(dashboard.Snapshot{Version: 3})
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(fp.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fp.msgs))
	}
	if s, ok := fp.msgs[0].(snapshotMsg); !ok || s.Version != 3 {
		t.Errorf("unexpected first message %#v", fp.msgs[0])
	}
	if _, ok := fp.msgs[1].(tea.QuitMsg); !ok {
		t.Errorf("expected quit, got %#v", fp.msgs[1])
	}
}

func TestApplySnapshotIgnoresOlderVersions(t *testing.T) {
	m := loadedModel(t)
	current := m.snap.Version
	if current == 0 {
		t.Fatal("expected a committed snapshot")
	}
	next, _ := m.Update(snapshotMsg{dashboard.Snapshot{Version: current - 1, Loading: true}})
	m = next.(model)
	if m.snap.Version != current || m.snap.Loading {
		t.Fatalf("older snapshot replaced the current one: %+v", m.snap)
	}
	if m.capTable.Len() != 2 {
		t.Errorf("capacity rows = %d, want 2", m.capTable.Len())
	}
}

func TestStepThresholdBounds(t *testing.T) {
	cases := []struct {
		in   float64
		n    int
		want float64
	}{
		{0.7, 1, 0.71},
		{0.7, -1, 0.69},
		{0.99, 1, 0.99},
		{0.5, -1, 0.5},
		{0.985, 1, 0.99},
	}
	for _, c := range cases {
		if got := stepThreshold(c.in, c.n); got != c.want {
			t.Errorf("stepThreshold(%v, %d) = %v, want %v", c.in, c.n, got, c.want)
		}
	}
}

func TestThresholdKeys(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "3")
	if m.tab != tabCorrelation {
		t.Fatalf("tab = %d, want correlation", m.tab)
	}
	m, _ = press(m, "+", "+", "-")
	if got := m.corr.Threshold(); got != 0.71 {
		t.Errorf("threshold = %v, want 0.71", got)
	}
	m, _ = press(m, "m")
	if !m.heatmap {
		t.Error("expected heatmap view")
	}
	if !strings.Contains(m.View(), "heatmap range") {
		t.Error("heatmap caption missing")
	}
}

func TestTabSwitching(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "tab", "tab")
	if m.tab != tabCorrelation {
		t.Fatalf("tab = %d after two tabs", m.tab)
	}
	m, _ = press(m, "6")
	if m.tab != tabChat || !m.chatInput.Focused() {
		t.Fatalf("assistant tab should focus the prompt")
	}
	m, _ = press(m, "esc")
	m, _ = press(m, "1")
	if m.tab != tabOverview || m.chatInput.Focused() {
		t.Fatalf("expected overview without focused prompt")
	}
	view := m.View()
	for _, want := range []string{"Link_A", "Link_B", "Insights"} {
		if !strings.Contains(view, want) {
			t.Errorf("overview missing %q", want)
		}
	}
}

func TestRejectedActionShowsNotice(t *testing.T) {
	m := loadedModel(t)
	next, _ := m.Update(actionDoneMsg{action: "upload", err: &api.UserActionError{Action: "upload", StatusCode: 400, Detail: "not a zip"}})
	m = next.(model)
	if !strings.Contains(m.notice, "not a zip") {
		t.Fatalf("notice = %q", m.notice)
	}
	m, _ = press(m, "2")
	if m.tab != tabOverview {
		t.Error("keys other than enter/esc must not pass a notice")
	}
	m, _ = press(m, "enter")
	if m.notice != "" {
		t.Error("enter should dismiss the notice")
	}

	next, _ = m.Update(actionDoneMsg{action: "reset", err: errors.New("connection refused")})
	m = next.(model)
	if !strings.HasPrefix(m.notice, "reset failed") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestResetRunsAgainstGateway(t *testing.T) {
	m := loadedModel(t)
	m, cmd := press(m, "R")
	if cmd == nil {
		t.Fatal("expected reset command")
	}
	done, ok := cmd().(actionDoneMsg)
	if !ok || done.action != "reset" {
		t.Fatalf("unexpected message %#v", done)
	}
	var ue *api.UserActionError
	if !errors.As(done.err, &ue) {
		t.Fatalf("expected read-only rejection, got %v", done.err)
	}
}

func TestMouseSelectsCorrelationNode(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "3")
	target := m.corr.Nodes()[1]
	col, row, ok := m.canvas().ToCell(target.Pos)
	if !ok {
		t.Fatalf("node %s off screen", target.ID)
	}
	click := tea.MouseMsg{X: col, Y: row + chromeTop, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	next, _ := m.Update(click)
	m = next.(model)
	if id, ok := m.corr.Selected(); !ok || id != target.ID {
		t.Fatalf("selected %q, want %q", id, target.ID)
	}
	next, _ = m.Update(click)
	m = next.(model)
	if _, ok := m.corr.Selected(); ok {
		t.Error("second click should toggle the selection off")
	}
}

func TestTopologyCycleSelectsLink(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "2")
	// the first node belongs to Link_A, the current selection
	m, cmd := press(m, "n")
	if cmd != nil {
		t.Fatal("selecting a node of the current link must not fetch")
	}
	nodes := m.topo.Layout().Nodes
	var hubB int
	for i, n := range nodes {
		if n.LinkID == "Link_B" {
			hubB = i
			break
		}
	}
	for i := 0; i < hubB; i++ {
		m, cmd = press(m, "n")
	}
	if cmd == nil {
		t.Fatal("expected traffic fetch for Link_B")
	}
	if done := cmd().(linkDoneMsg); done.link != "Link_B" || done.err != nil {
		t.Fatalf("unexpected link result %#v", done)
	}
	if got := m.orch.Snapshot().SelectedLink; got != "Link_B" {
		t.Errorf("selected link = %s", got)
	}
}

func TestCapacitySortToggle(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "4")
	col, dir := m.capTable.Sort()
	if col != capacity.ColPeak || dir != capacity.Descending {
		t.Fatalf("initial sort %s %v", col, dir)
	}
	m, _ = press(m, "s")
	if _, dir = m.capTable.Sort(); dir != capacity.Ascending {
		t.Error("sorting the active column should flip direction")
	}
	m, _ = press(m, "left", "s")
	col, dir = m.capTable.Sort()
	if col != capacity.ColAvg || dir != capacity.Descending {
		t.Errorf("sort = %s %v, want avg descending", col, dir)
	}
	if !strings.Contains(m.table.Columns()[1].Title, "[") {
		t.Errorf("active column not marked: %q", m.table.Columns()[1].Title)
	}
}

func TestCapacityFilterAndExport(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "4", "/", "L", "i", "n", "k", "_", "B", "enter")
	if rows := m.capTable.Rows(); len(rows) != 1 || rows[0].LinkID != "Link_B" {
		t.Fatalf("filtered rows = %+v", rows)
	}
	m, _ = press(m, "e")
	if m.notice != "" {
		t.Fatalf("export failed: %s", m.notice)
	}
	if !strings.Contains(m.status, "exported 1 rows") {
		t.Errorf("status = %q", m.status)
	}
}

func TestTrafficCompareAll(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "5")
	if !strings.Contains(m.View(), "2 samples") {
		t.Error("selected link series missing")
	}
	m, _ = press(m, "a")
	if !m.compareAll {
		t.Fatal("expected compare mode")
	}
	m, cmd := press(m, "right")
	if cmd == nil {
		t.Fatal("expected link switch")
	}
	if done := cmd().(linkDoneMsg); done.link != "Link_B" {
		t.Errorf("next link = %s", done.link)
	}
}

func TestChatErrorBecomesAssistantMessage(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(m, "6")
	m, cmd := press(m, "w", "h", "y", "enter")
	if cmd == nil || !m.chatBusy {
		t.Fatal("expected chat request")
	}
	next, _ := m.Update(cmd())
	m = next.(model)
	if len(m.history) != 2 {
		t.Fatalf("history = %+v", m.history)
	}
	if got := m.history[1]; got.Role != "assistant" || !strings.Contains(got.Content, "assistant unavailable offline") {
		t.Errorf("reply = %+v", got)
	}
}

func TestUnloadedViewShowsError(t *testing.T) {
	orch := dashboard.New(api.NewFixtureGateway(api.Recording{ID: "empty"}))
	_ = orch.FetchAll(context.Background(), false)
	m := newModel(context.Background(), orch, config.Default(), nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	next, _ = next.Update(snapshotMsg{orch.Snapshot()})
	if !strings.Contains(next.View(), "backend unavailable") {
		t.Errorf("expected error screen, got:\n%s", next.View())
	}
}
