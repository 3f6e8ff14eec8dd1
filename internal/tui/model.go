package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/correlation"
	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/render"
	"fronthaul-noc/internal/topology"
)

type tab int

const (
	tabOverview tab = iota
	tabTopology
	tabCorrelation
	tabCapacity
	tabTraffic
	tabChat
)

var tabNames = []string{"Overview", "Topology", "Correlation", "Capacity", "Traffic", "Assistant"}

const (
	thresholdMin  = 0.5
	thresholdMax  = 0.99
	thresholdStep = 0.01

	// rows above and below the graph area: tab bar, divider, divider, footer
	chromeTop    = 2
	chromeBottom = 2
)

type model struct {
	ctx    context.Context
	orch   *dashboard.Orchestrator
	cfg    *config.Config
	logger *slog.Logger

	snap   dashboard.Snapshot
	tab    tab
	width  int
	height int

	corr        *correlation.Graph
	heatmap     bool
	topo        *topology.Graph
	capTable    *capacity.Table
	capColumn   int
	table       table.Model
	filter      textinput.Model
	compareAll  bool
	chatInput   textinput.Model
	chatVP      viewport.Model
	history     []api.ChatMessage
	chatBusy    bool
	uploadInput textinput.Model
	uploading   bool

	notice string
	status string
	help   bool
}

func newModel(ctx context.Context, orch *dashboard.Orchestrator, cfg *config.Config, logger *slog.Logger) model {
	if logger == nil {
		logger = slog.Default()
	}
	cc := cfg.Correlation
	col, err := capacity.ParseColumn(cfg.Capacity.SortColumn)
	if err != nil {
		col = capacity.ColPeak
	}
	filter := textinput.New()
	filter.Placeholder = "filter links"
	filter.Prompt = "/ "
	chat := textinput.New()
	chat.Placeholder = "ask about the network"
	chat.Prompt = "> "
	upload := textinput.New()
	upload.Placeholder = "path/to/dataset.zip"
	upload.Prompt = "upload: "

	m := model{
		ctx:         ctx,
		orch:        orch,
		cfg:         cfg,
		logger:      logger,
		corr:        correlation.NewGraph(cc.Width, cc.Height, correlation.WithThreshold(cc.Threshold), correlation.WithHitRadius(cc.HitRadius)),
		topo:        topology.NewGraph(cc.Width, cc.Height, cfg.Topology.HubRadius, cfg.Topology.CellRadius),
		capTable:    capacity.NewTable(nil, col),
		table:       table.New(table.WithFocused(true)),
		filter:      filter,
		chatInput:   chat,
		chatVP:      viewport.New(0, 0),
		uploadInput: upload,
	}
	for i, c := range capacity.Columns {
		if c == col {
			m.capColumn = i
		}
	}
	m.refreshTable()
	return m
}

func (m model) Init() tea.Cmd { return m.fetchCmd(false) }

func (m model) fetchCmd(force bool) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		return fetchDoneMsg{err: orch.FetchAll(ctx, force)}
	}
}

func (m model) selectLinkCmd(id string) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		return linkDoneMsg{link: id, err: orch.SelectLink(ctx, id)}
	}
}

func (m model) uploadCmd(path string) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return actionDoneMsg{action: "upload", err: err}
		}
		defer f.Close()
		return actionDoneMsg{action: "upload", err: orch.Upload(ctx, filepath.Base(path), f)}
	}
}

func (m model) resetCmd() tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: "reset", err: orch.Reset(ctx)}
	}
}

func (m model) chatCmd(prompt string) tea.Cmd {
	orch, ctx, modelName := m.orch, m.ctx, m.cfg.Chat.Model
	history := append([]api.ChatMessage(nil), m.history...)
	return func() tea.Msg {
		reply, err := orch.Chat(ctx, modelName, history, prompt)
		return chatReplyMsg{reply: reply, err: err}
	}
}

// canvas maps the graph area of the screen onto the virtual pixel space.
func (m model) canvas() render.Canvas {
	w, h := m.corr.Size()
	return render.NewCanvas(w, h, max(m.width, 1), m.graphRows())
}

func (m model) graphRows() int {
	return max(m.height-chromeTop-chromeBottom, 1)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(m.graphRows()-3, 3))
		m.filter.Width = max(msg.Width-4, 10)
		m.chatInput.Width = max(msg.Width-4, 10)
		m.uploadInput.Width = max(msg.Width-12, 10)
		m.chatVP.Width = msg.Width
		m.chatVP.Height = max(m.graphRows()-2, 1)
		m.refreshChat()
	case snapshotMsg:
		m.applySnapshot(msg.Snapshot)
	case fetchDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, dashboard.ErrSuperseded) {
			m.status = "refresh failed: " + msg.err.Error()
		} else if msg.err == nil {
			m.status = ""
		}
	case linkDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("traffic for %s unavailable: %v", msg.link, msg.err)
		}
	case actionDoneMsg:
		m.uploading = false
		if msg.err != nil {
			m.notice = actionNotice(msg.action, msg.err)
		} else {
			m.status = msg.action + " complete"
		}
	case chatReplyMsg:
		m.chatBusy = false
		if msg.err != nil {
			content := "Error: could not reach the assistant."
			var ue *api.UserActionError
			if errors.As(msg.err, &ue) && ue.Detail != "" {
				content = "Error: " + ue.Detail
			}
			m.history = append(m.history, api.ChatMessage{Role: "assistant", Content: content})
		} else {
			m.history = append(m.history, msg.reply)
		}
		m.refreshChat()
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func actionNotice(action string, err error) string {
	var ue *api.UserActionError
	if errors.As(err, &ue) {
		if ue.Detail != "" {
			return fmt.Sprintf("%s rejected by the backend: %s", action, ue.Detail)
		}
		return fmt.Sprintf("%s rejected by the backend (status %d)", action, ue.StatusCode)
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}

// applySnapshot ignores snapshots older than the one shown.
func (m *model) applySnapshot(s dashboard.Snapshot) {
	if s.Version < m.snap.Version {
		return
	}
	m.snap = s
	m.corr.SetData(s.Correlation)
	m.topo.SetData(s.Topology)
	m.capTable.SetRecords(s.Capacity)
	m.refreshTable()
}

func (m *model) refreshTable() {
	col, dir := m.capTable.Sort()
	cols := make([]table.Column, 0, len(capacity.Columns)+1)
	for i, c := range capacity.Columns {
		title := c.Title()
		if c == col {
			title += " " + dir.Arrow()
		}
		if i == m.capColumn {
			title = "[" + title + "]"
		}
		w := 12
		if c == capacity.ColLinkID {
			w = 10
		}
		cols = append(cols, table.Column{Title: title, Width: max(w, len(title))})
	}
	cols = append(cols, table.Column{Title: "Profile", Width: 7})
	var rows []table.Row
	for _, r := range m.capTable.Rows() {
		cells := r.Cells()
		cells = append(cells, capacity.SparklineString(capacity.Sparkline(r.CapacityRecord)))
		rows = append(rows, table.Row(cells))
	}
	// columns first so rows never outnumber them
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
}

func (m *model) refreshChat() {
	var b strings.Builder
	for _, msg := range m.history {
		who := "you"
		if msg.Role != "user" {
			who = msg.Role
		}
		line := fmt.Sprintf("%s: %s", who, msg.Content)
		if m.chatVP.Width > 0 {
			line = wrap(line, m.chatVP.Width)
		}
		b.WriteString(line + "\n")
	}
	if m.chatBusy {
		b.WriteString("assistant is thinking...\n")
	}
	m.chatVP.SetContent(strings.TrimRight(b.String(), "\n"))
	m.chatVP.GotoBottom()
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	row := msg.Y - chromeTop
	if row < 0 || row >= m.graphRows() {
		return m, nil
	}
	p := m.canvas().ToPoint(msg.X, row)
	switch m.tab {
	case tabCorrelation:
		if !m.heatmap {
			m.corr.Click(p)
		}
	case tabTopology:
		m.topo.Click(p)
		if n, ok := m.topo.Selected(); ok && n.LinkID != m.snap.SelectedLink {
			return m, m.selectLinkCmd(n.LinkID)
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.notice != "" {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.notice = ""
		}
		return m, nil
	}
	if m.uploadInput.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			path := strings.TrimSpace(m.uploadInput.Value())
			m.uploadInput.Blur()
			m.uploadInput.SetValue("")
			if path == "" {
				return m, nil
			}
			m.uploading = true
			m.status = "uploading " + filepath.Base(path)
			return m, m.uploadCmd(path)
		case tea.KeyEsc:
			m.uploadInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.uploadInput, cmd = m.uploadInput.Update(msg)
		return m, cmd
	}
	if m.filter.Focused() {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.capTable.SetFilter(m.filter.Value())
		m.refreshTable()
		return m, cmd
	}
	if m.tab == tabChat && m.chatInput.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			prompt := strings.TrimSpace(m.chatInput.Value())
			if prompt == "" || m.chatBusy {
				return m, nil
			}
			m.chatInput.SetValue("")
			m.history = append(m.history, api.ChatMessage{Role: "user", Content: prompt})
			m.chatBusy = true
			m.refreshChat()
			return m, m.chatCmd(prompt)
		case tea.KeyEsc:
			m.chatInput.Blur()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.chatVP, cmd = m.chatVP.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.chatInput, cmd = m.chatInput.Update(msg)
		return m, cmd
	}
	if m.help {
		switch msg.String() {
		case "h", "?", "esc", "q":
			m.help = false
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "h", "?":
		m.help = true
		return m, nil
	case "tab":
		m.tab = (m.tab + 1) % tab(len(tabNames))
		return m, m.focusTab()
	case "shift+tab":
		m.tab = (m.tab + tab(len(tabNames)) - 1) % tab(len(tabNames))
		return m, m.focusTab()
	case "1", "2", "3", "4", "5", "6":
		m.tab = tab(msg.String()[0] - '1')
		return m, m.focusTab()
	case "r":
		m.status = "refreshing"
		return m, m.fetchCmd(true)
	case "u":
		if m.uploading {
			return m, nil
		}
		return m, m.uploadInput.Focus()
	case "R":
		m.status = "resetting dataset"
		return m, m.resetCmd()
	}

	switch m.tab {
	case tabCorrelation:
		return m.correlationKey(msg)
	case tabTopology:
		return m.topologyKey(msg)
	case tabCapacity:
		return m.capacityKey(msg)
	case tabTraffic:
		return m.trafficKey(msg)
	case tabChat:
		if msg.Type == tea.KeyEnter || msg.String() == "i" {
			return m, m.chatInput.Focus()
		}
	}
	return m, nil
}

func (m *model) focusTab() tea.Cmd {
	if m.tab == tabChat {
		return m.chatInput.Focus()
	}
	m.chatInput.Blur()
	return nil
}

// stepThreshold moves the slider by n steps within its bounds.
func stepThreshold(t float64, n int) float64 {
	v := math.Round((t+float64(n)*thresholdStep)*100) / 100
	return math.Min(thresholdMax, math.Max(thresholdMin, v))
}

func (m model) correlationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "+", "=", "right", "l":
		m.corr.SetThreshold(stepThreshold(m.corr.Threshold(), 1))
	case "-", "left":
		m.corr.SetThreshold(stepThreshold(m.corr.Threshold(), -1))
	case "m":
		m.heatmap = !m.heatmap
	case "n", "p":
		nodes := m.corr.Nodes()
		if len(nodes) == 0 {
			break
		}
		idx := -1
		if id, ok := m.corr.Selected(); ok {
			for i, n := range nodes {
				if n.ID == id {
					idx = i
				}
			}
		}
		m.corr.Select(nodes[cycle(idx, len(nodes), msg.String() == "n")].ID)
	case "esc":
		m.corr.ClearSelection()
	}
	return m, nil
}

func (m model) topologyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "n", "p":
		nodes := m.topo.Layout().Nodes
		if len(nodes) == 0 {
			break
		}
		idx := -1
		if sel, ok := m.topo.Selected(); ok {
			for i, n := range nodes {
				if n.ID == sel.ID {
					idx = i
				}
			}
		}
		next := nodes[cycle(idx, len(nodes), msg.String() == "n")]
		m.topo.SelectNode(next.ID)
		if next.LinkID != m.snap.SelectedLink {
			return m, m.selectLinkCmd(next.LinkID)
		}
	case "esc":
		m.topo.ClearSelection()
	}
	return m, nil
}

func cycle(idx, n int, forward bool) int {
	if idx < 0 {
		if forward {
			return 0
		}
		return n - 1
	}
	if forward {
		return (idx + 1) % n
	}
	return (idx + n - 1) % n
}

func (m model) capacityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left":
		m.capColumn = (m.capColumn + len(capacity.Columns) - 1) % len(capacity.Columns)
	case "right":
		m.capColumn = (m.capColumn + 1) % len(capacity.Columns)
	case "s", "enter":
		m.capTable.SortBy(capacity.Columns[m.capColumn])
	case "/":
		return m, m.filter.Focus()
	case "e":
		path := m.cfg.Capacity.ExportPath
		n, err := capacity.ExportFile(path, m.capTable)
		if err != nil {
			m.notice = "export failed: " + err.Error()
		} else {
			m.status = fmt.Sprintf("exported %d rows to %s", n, path)
			m.logger.Info("[Console] capacity exported", "path", path, "rows", n)
		}
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.refreshTable()
	return m, nil
}

func (m model) trafficKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a":
		m.compareAll = !m.compareAll
	case "left", "right", "n", "p":
		ids := m.snap.Topology.LinkIDs()
		if len(ids) == 0 {
			break
		}
		idx := -1
		for i, id := range ids {
			if id == m.snap.SelectedLink {
				idx = i
			}
		}
		forward := msg.String() == "right" || msg.String() == "n"
		return m, m.selectLinkCmd(ids[cycle(idx, len(ids), forward)])
	}
	return m, nil
}
