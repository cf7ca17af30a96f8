package utils

import "math"

// Round2 rounds x to 2 decimal places. Used for analytics rates
// (success/cache-hit percentages, latency averages) and estimated service
// costs.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
