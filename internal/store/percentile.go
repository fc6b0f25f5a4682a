package store

import "math"

// PercentileWindow converts percentile bounds over a ranked population of
// size total into a (skip, take) window on the descending rank order.
// Percentiles count from the top: maxPct=100 starts at rank 0.
func PercentileWindow(total int64, minPct, maxPct float64, limit int) (skip, take int64) {
	if total <= 0 || maxPct <= minPct {
		return 0, 0
	}
	if maxPct > 100 {
		maxPct = 100
	}
	if minPct < 0 {
		minPct = 0
	}
	skip = int64(math.Floor((100 - maxPct) / 100 * float64(total)))
	take = int64(math.Ceil((maxPct - minPct) / 100 * float64(total)))
	if lim := int64(ClampLimit(limit)); take > lim {
		take = lim
	}
	return skip, take
}
