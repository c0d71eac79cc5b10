package inventory

import (
	"math"
	"time"
)

// AnomalySeverity grades how far an outlier sits from the baseline
type AnomalySeverity string

const (
	AnomalySeverityLow      AnomalySeverity = "low"
	AnomalySeverityMedium   AnomalySeverity = "medium"
	AnomalySeverityHigh     AnomalySeverity = "high"
	AnomalySeverityCritical AnomalySeverity = "critical"
)

// String returns the string representation of AnomalySeverity
func (s AnomalySeverity) String() string {
	return string(s)
}

// AnomalyBands are the acceptance bounds around a usage baseline. Values
// inside [Lower, Upper] are considered normal.
type AnomalyBands struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// Anomaly is one observation outside the bands
type Anomaly struct {
	Date      time.Time       `json:"date"`
	Quantity  float64         `json:"quantity"`
	Deviation float64         `json:"deviation"`
	Severity  AnomalySeverity `json:"severity"`
}

// ComputeAnomalyBands derives acceptance bounds from a usage series. The
// band half-width is the sample standard deviation scaled by (2 minus
// sensitivity), with sensitivity clamped to [0, 1]: sensitivity 0 gives the
// widest bands and fewest alerts, 1 the narrowest and most.
func ComputeAnomalyBands(observations []UsageObservation, sensitivity float64) AnomalyBands {
	stats := ComputeDemandStats(observations)
	factor := 2 - clampSensitivity(sensitivity)
	halfWidth := stats.StdDev * factor
	return AnomalyBands{
		Mean:   stats.AverageDailyUsage,
		StdDev: stats.StdDev,
		Lower:  stats.AverageDailyUsage - halfWidth,
		Upper:  stats.AverageDailyUsage + halfWidth,
	}
}

// DetectOutliers flags observations falling outside the bands for the
// series, preserving input order. Deviation is the distance from the mean in
// standard deviations; severity steps up at 2, 3 and 4. A flat series has no
// spread to measure against and yields none.
func DetectOutliers(observations []UsageObservation, sensitivity float64) []Anomaly {
	bands := ComputeAnomalyBands(observations, sensitivity)
	if bands.StdDev <= 0 {
		return nil
	}

	var anomalies []Anomaly
	for _, o := range observations {
		if o.Quantity >= bands.Lower && o.Quantity <= bands.Upper {
			continue
		}
		deviation := math.Abs(o.Quantity-bands.Mean) / bands.StdDev
		anomalies = append(anomalies, Anomaly{
			Date:      o.Date,
			Quantity:  o.Quantity,
			Deviation: deviation,
			Severity:  severityFor(deviation),
		})
	}
	return anomalies
}

func severityFor(deviation float64) AnomalySeverity {
	switch {
	case deviation >= 4:
		return AnomalySeverityCritical
	case deviation >= 3:
		return AnomalySeverityHigh
	case deviation >= 2:
		return AnomalySeverityMedium
	default:
		return AnomalySeverityLow
	}
}

func clampSensitivity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
