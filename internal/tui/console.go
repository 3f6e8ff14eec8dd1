// Package tui is the interactive terminal console: a bubbletea program that
// renders the orchestrator snapshot through the correlation, topology and
// capacity views.
package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/dashboard"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// snapshotMsg delivers a new orchestrator snapshot.
type snapshotMsg struct{ dashboard.Snapshot }

// fetchDoneMsg reports the end of a full refresh.
type fetchDoneMsg struct{ err error }

// linkDoneMsg reports the end of a traffic fetch for a selected link.
type linkDoneMsg struct {
	link string
	err  error
}

// actionDoneMsg reports an upload or reset.
type actionDoneMsg struct {
	action string
	err    error
}

// chatReplyMsg carries the assistant answer.
type chatReplyMsg struct {
	reply api.ChatMessage
	err   error
}

// Console runs the TUI and mirrors orchestrator snapshots into it.
type Console struct {
	program teaProgram
	run     func() error
}

// NewConsole builds the program and subscribes it to orch.
func NewConsole(ctx context.Context, orch *dashboard.Orchestrator, cfg *config.Config, logger *slog.Logger) *Console {
	m := newModel(ctx, orch, cfg, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	c := &Console{program: p}
	c.run = func() error {
		_, err := p.Run()
		return err
	}
	orch.Subscribe(c)
	return c
}

// OnSnapshot implements dashboard.Observer.
func (c *Console) OnSnapshot(s dashboard.Snapshot) {
	c.program.Send(snapshotMsg{s})
}

// Run blocks until the operator quits.
func (c *Console) Run() error {
	return c.run()
}

// Close asks the program to quit.
func (c *Console) Close() error {
	if c.program != nil {
		c.program.Send(tea.Quit())
	}
	return nil
}
