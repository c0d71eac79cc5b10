package inventory

import (
	"math"
	"time"
)

// DemandStats summarizes observed usage for one product, feeding the
// reorder and safety stock calculations.
type DemandStats struct {
	AverageDailyUsage float64 `json:"average_daily_usage"`
	StdDev            float64 `json:"std_dev"`
	Observations      int     `json:"observations"`
}

// UsageObservation is one day's recorded usage
type UsageObservation struct {
	Date     time.Time
	Quantity float64
}

// ComputeDemandStats derives average daily usage and its sample standard
// deviation from a usage series. Fewer than two observations yield a zero
// standard deviation.
func ComputeDemandStats(observations []UsageObservation) DemandStats {
	n := len(observations)
	if n == 0 {
		return DemandStats{}
	}

	var sum float64
	for _, o := range observations {
		sum += o.Quantity
	}
	mean := sum / float64(n)

	stats := DemandStats{AverageDailyUsage: mean, Observations: n}
	if n < 2 {
		return stats
	}

	var sqSum float64
	for _, o := range observations {
		d := o.Quantity - mean
		sqSum += d * d
	}
	stats.StdDev = math.Sqrt(sqSum / float64(n-1))
	return stats
}

// SeasonalFactors returns, per calendar month, the ratio of that month's
// average daily usage to the overall average. Months without observations
// get a neutral factor of 1.
func SeasonalFactors(observations []UsageObservation) [12]float64 {
	var factors [12]float64
	for i := range factors {
		factors[i] = 1
	}
	if len(observations) == 0 {
		return factors
	}

	var totals, counts [12]float64
	var overallSum float64
	for _, o := range observations {
		m := int(o.Date.Month()) - 1
		totals[m] += o.Quantity
		counts[m]++
		overallSum += o.Quantity
	}
	overallMean := overallSum / float64(len(observations))
	if overallMean == 0 {
		return factors
	}

	for m := range factors {
		if counts[m] > 0 {
			factors[m] = (totals[m] / counts[m]) / overallMean
		}
	}
	return factors
}
