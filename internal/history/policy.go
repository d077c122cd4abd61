package history

import "math"

// SignificanceThreshold is the relative price change required before a new
// history point is recorded. Smaller moves still update the product's
// current price but do not grow the history series.
const SignificanceThreshold = 0.01

// IsSignificantChange reports whether the move from previous to current
// crosses the recording threshold. The comparison is relative to the
// previous price; a previous price of zero always counts as significant
// so the first real observation is never dropped.
func IsSignificantChange(previous, current float64) bool {
	if previous <= 0 {
		return true
	}
	return math.Abs(current-previous)/previous > SignificanceThreshold
}

// Decision describes what ingestion should do with one observed price.
type Decision struct {
	// UpdateCurrent is always true for a valid observation: the product's
	// live price tracks every scrape.
	UpdateCurrent bool
	// AppendHistory is true only when the change is significant or the
	// product has no history yet.
	AppendHistory bool
}

// Decide applies the ingestion policy to one observation. hasHistory is
// whether any point exists for the product; previous is the last recorded
// current price.
func Decide(previous float64, current float64, hasHistory bool) Decision {
	return Decision{
		UpdateCurrent: true,
		AppendHistory: !hasHistory || IsSignificantChange(previous, current),
	}
}
