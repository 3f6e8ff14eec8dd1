package capacity

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"fronthaul-noc/internal/fronthaul"
)

// MaxChartPoints bounds the traffic series drawn in one chart.
const MaxChartPoints = 500

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline is the five point profile of a record: avg, mid, peak, with
// buffer, no buffer.
func Sparkline(r fronthaul.CapacityRecord) []float64 {
	return []float64{
		r.AvgGbps,
		(r.AvgGbps + r.PeakGbps) / 2,
		r.PeakGbps,
		r.CapacityWithBufferGbps,
		r.CapacityNoBufferGbps,
	}
}

// SparklineString draws values as block characters scaled to their max.
func SparklineString(values []float64) string {
	hi := 0.0
	for _, v := range values {
		if v > hi {
			hi = v
		}
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > 0 && v > 0 {
			idx = int(math.Round(v / hi * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// Downsample keeps every k-th point so that at most max points remain.
func Downsample(points []fronthaul.TrafficPoint, max int) []fronthaul.TrafficPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	step := (len(points) + max - 1) / max
	out := make([]fronthaul.TrafficPoint, 0, max)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}

// Suggest returns the candidate closest to query by edit distance, if it
// is within half the query length (at least 2).
func Suggest(query string, candidates []string) (string, bool) {
	q := strings.ToLower(query)
	limit := len(q) / 2
	if limit < 2 {
		limit = 2
	}
	best, bestDist := "", math.MaxInt
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(q, strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" || bestDist > limit {
		return "", false
	}
	return best, true
}
