package dashboard

import (
	"context"
	"strings"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/fronthaul"
)

const (
	// HighTrafficPeak is the peak_gbps above which a link is reported to the
	// assistant as a capacity issue.
	HighTrafficPeak = 10000.0

	chatTrafficPoints = 5
	highTrafficAdvice = "High traffic - needs buffering"
)

// TopologySummary counts links and cells.
type TopologySummary struct {
	LinkCount int `json:"link_count"`
	CellCount int `json:"cell_count"`
}

// CapacityIssue flags a link whose peak exceeds HighTrafficPeak.
type CapacityIssue struct {
	LinkID         string  `json:"link_id"`
	PeakGbps       float64 `json:"peak_gbps"`
	Recommendation string  `json:"recommendation"`
}

// ChatContext is the context_data attached to assistant requests. The
// summary and traffic fields hold a placeholder string when nothing has
// loaded.
type ChatContext struct {
	TopologySummary any             `json:"topology_summary"`
	CapacityIssues  []CapacityIssue `json:"capacity_issues"`
	TrafficSnapshot any             `json:"traffic_snapshot"`
}

// BuildChatContext derives assistant context from a snapshot.
func BuildChatContext(s Snapshot) ChatContext {
	c := ChatContext{
		TopologySummary: "Not loaded",
		CapacityIssues:  []CapacityIssue{},
		TrafficSnapshot: "No recent traffic",
	}
	if s.Topology != nil {
		c.TopologySummary = TopologySummary{LinkCount: len(s.Topology.Links), CellCount: s.Topology.CellCount()}
	}
	for _, r := range s.Capacity {
		if r.PeakGbps > HighTrafficPeak {
			c.CapacityIssues = append(c.CapacityIssues, CapacityIssue{LinkID: r.LinkID, PeakGbps: r.PeakGbps, Recommendation: highTrafficAdvice})
		}
	}
	if s.Traffic != nil {
		n := min(len(s.Traffic), chatTrafficPoints)
		c.TrafficSnapshot = append([]fronthaul.TrafficPoint(nil), s.Traffic[:n]...)
	}
	return c
}

// Chat sends the conversation plus a new user prompt to the assistant with
// context from the current snapshot.
func (o *Orchestrator) Chat(ctx context.Context, model string, history []api.ChatMessage, prompt string) (api.ChatMessage, error) {
	msgs := make([]api.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, api.ChatMessage{Role: "user", Content: strings.TrimSpace(prompt)})
	req := api.ChatRequest{Messages: msgs, Model: model, ContextData: BuildChatContext(o.Snapshot())}
	reply, err := o.gw.Chat(ctx, req)
	if err != nil {
		o.logger.Warn("[Orchestrator] chat failed", "model", model, "err", err)
		return api.ChatMessage{}, err
	}
	return reply, nil
}
