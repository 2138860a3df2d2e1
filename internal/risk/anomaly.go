package risk

import "math"

// Baseline holds per-feature mean and standard deviation estimated from
// recent legitimate traffic. The trainer refreshes it out-of-band.
type Baseline struct {
	Mean [FeatureCount]float64
	Std  [FeatureCount]float64
}

// DefaultBaseline is the cold-start baseline used before the first
// retrain. Values describe a typical retail sender profile.
func DefaultBaseline() Baseline {
	return Baseline{
		Mean: [FeatureCount]float64{
			FeatAmount:      120,
			FeatDeviation:   1,
			FeatVelocity:    0.5,
			FeatHistory:     25,
			FeatNovelty:     0.3,
			FeatAccountAge:  180,
			FeatFailedRatio: 0.02,
			FeatHour:        13,
		},
		Std: [FeatureCount]float64{
			FeatAmount:      400,
			FeatDeviation:   1.5,
			FeatVelocity:    1,
			FeatHistory:     40,
			FeatNovelty:     0.45,
			FeatAccountAge:  200,
			FeatFailedRatio: 0.05,
			FeatHour:        6,
		},
	}
}

// AnomalyDetector is the unsupervised signal: an outlier score over the
// feature vector, normalized to [0,1].
type AnomalyDetector struct {
	baseline Baseline
}

// NewAnomalyDetector creates a detector over the given baseline.
func NewAnomalyDetector(baseline Baseline) *AnomalyDetector {
	return &AnomalyDetector{baseline: baseline}
}

// Score returns the normalized outlier score of v. The raw statistic is
// the largest absolute z-score across features; squashing keeps ordinary
// traffic (z <= 2) well below 0.5 while hard outliers approach 1.
func (d *AnomalyDetector) Score(v []float64) float64 {
	maxZ := 0.0
	for i := 0; i < FeatureCount && i < len(v); i++ {
		std := d.baseline.Std[i]
		if std <= 0 {
			continue
		}
		z := math.Abs(v[i]-d.baseline.Mean[i]) / std
		if z > maxZ {
			maxZ = z
		}
	}
	return 1 - math.Exp(-maxZ/3)
}

// FitBaseline estimates a Baseline from sample vectors. Features with
// fewer than two samples or zero variance keep the default deviation to
// avoid degenerate z-scores.
func FitBaseline(samples [][]float64) Baseline {
	b := DefaultBaseline()
	n := float64(len(samples))
	if n < 2 {
		return b
	}

	var sum, sumSq [FeatureCount]float64
	for _, v := range samples {
		for i := 0; i < FeatureCount && i < len(v); i++ {
			sum[i] += v[i]
			sumSq[i] += v[i] * v[i]
		}
	}
	for i := 0; i < FeatureCount; i++ {
		mean := sum[i] / n
		variance := sumSq[i]/n - mean*mean
		if variance <= 0 {
			continue
		}
		b.Mean[i] = mean
		b.Std[i] = math.Sqrt(variance)
	}
	return b
}
