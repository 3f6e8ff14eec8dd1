package capacity

import (
	"fmt"

	"fronthaul-noc/internal/fronthaul"
)

// Insight is one derived statement.
type Insight struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Insights derives the four statements about the capacity summary. It
// returns nil for an empty summary.
func Insights(records []fronthaul.CapacityRecord, topo *fronthaul.Topology) []Insight {
	if len(records) == 0 {
		return nil
	}
	top := records[0]
	for _, r := range records[1:] {
		if r.PeakGbps > top.PeakGbps {
			top = r
		}
	}
	var pctSum, saved float64
	for _, r := range records {
		pctSum += SavingsPercent(r)
		saved += r.CapacityNoBufferGbps - r.CapacityWithBufferGbps
	}
	links, cells := len(records), 0
	if topo != nil {
		links, cells = len(topo.Links), topo.CellCount()
	}
	return []Insight{
		{
			Title: "Most Congested Link",
			Text:  fmt.Sprintf("%s experiences the highest peak traffic at %.2f Gbps, making it the most critical link requiring optimization.", top.LinkID, top.PeakGbps),
		},
		{
			Title: "Over-Provisioning Reduction",
			Text:  fmt.Sprintf("Buffering achieves an average capacity reduction of %.1f%% while maintaining QoS.", pctSum/float64(len(records))),
		},
		{
			Title: "Buffering Benefits",
			Text:  fmt.Sprintf("Buffering absorbs traffic bursts, reducing total provisioned capacity by %.2f Gbps across all links.", saved),
		},
		{
			Title: "Topology Discovery",
			Text:  fmt.Sprintf("Correlation-based clustering identified %d fronthaul links serving %d cells.", links, cells),
		},
	}
}

// MeanSavings is the average SavingsPercent, 0 for no records.
func MeanSavings(records []fronthaul.CapacityRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += SavingsPercent(r)
	}
	return sum / float64(len(records))
}
