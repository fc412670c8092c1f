package market

import (
	"math"

	"coinpulse/internal/models"
)

// SyntheticHistory builds a 24h price path for charting. No history is
// fetched: the path runs from the implied open (price before the 24h change)
// to the current price with a deterministic wobble. First and last points are
// exact.
func SyntheticHistory(q models.Quote, points int) []float64 {
	if points < 2 || q.Price <= 0 {
		return nil
	}

	open := q.Price
	if q.ChangePct24h > -100 {
		open = q.Price / (1 + q.ChangePct24h/100)
	}

	amplitude := q.Price * 0.004
	out := make([]float64, points)
	for i := range out {
		frac := float64(i) / float64(points-1)
		base := open + (q.Price-open)*frac
		// sin(pi*frac) pins both ends to zero wobble
		wobble := amplitude * math.Sin(math.Pi*frac) * math.Sin(float64(i)*1.7)
		out[i] = math.Max(0, base+wobble)
	}
	out[0] = open
	out[points-1] = q.Price
	return out
}
