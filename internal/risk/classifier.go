package risk

import "math"

// Classifier is the supervised signal: a logistic model predicting fraud
// probability from the standardized feature vector. Weights are warm
// state loaded at startup; retraining swaps the whole scorer, never
// mutates a live classifier.
type Classifier struct {
	weights  [FeatureCount]float64
	bias     float64
	baseline Baseline // standardization uses the same baseline as the detector
}

// NewClassifier creates a classifier with the given weights and bias.
func NewClassifier(weights [FeatureCount]float64, bias float64, baseline Baseline) *Classifier {
	return &Classifier{weights: weights, bias: bias, baseline: baseline}
}

// DefaultWeights is the shipped model: fraud probability rises with
// deviation from personal norm, burst velocity, recipient novelty, and a
// poor failure history; it falls with account age and send history.
func DefaultWeights() [FeatureCount]float64 {
	return [FeatureCount]float64{
		FeatAmount:      0.6,
		FeatDeviation:   1.4,
		FeatVelocity:    1.1,
		FeatHistory:     -0.5,
		FeatNovelty:     0.8,
		FeatAccountAge:  -0.7,
		FeatFailedRatio: 1.2,
		FeatHour:        0.1,
	}
}

const defaultBias = -2.2

// Score returns the fraud probability for v in [0,1].
func (c *Classifier) Score(v []float64) float64 {
	sum := c.bias
	for i := 0; i < FeatureCount && i < len(v); i++ {
		std := c.baseline.Std[i]
		if std <= 0 {
			std = 1
		}
		sum += c.weights[i] * (v[i] - c.baseline.Mean[i]) / std
	}
	return sigmoid(sum)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
