package risk

import (
	"context"
	"testing"
	"time"

	"quantumpay-core/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalyDetector_TypicalTrafficScoresLow(t *testing.T) {
	d := NewAnomalyDetector(DefaultBaseline())

	s := &domain.SenderSnapshot{
		AvgSendAmount:     110,
		CompletedSends:    30,
		PaidReceiverCount: 1,
		AccountAgeDays:    200,
		HourOfDay:         14,
	}
	score := d.Score(Vector(120, s))

	assert.Less(t, score, 0.5)
}

func TestAnomalyDetector_OutlierScoresHigh(t *testing.T) {
	d := NewAnomalyDetector(DefaultBaseline())

	s := &domain.SenderSnapshot{
		AvgSendAmount: 100,
		SendsLastHour: 40,
		HourOfDay:     3,
	}
	score := d.Score(Vector(15000, s))

	assert.Greater(t, score, 0.9)
	assert.LessOrEqual(t, score, 1.0)
}

func TestFitBaseline_RecoversSampleStatistics(t *testing.T) {
	samples := make([][]float64, 0, 100)
	for i := 0; i < 100; i++ {
		v := make([]float64, FeatureCount)
		v[FeatAmount] = float64(50 + i) // mean 99.5
		v[FeatHour] = 12
		samples = append(samples, v)
	}

	b := FitBaseline(samples)

	assert.InDelta(t, 99.5, b.Mean[FeatAmount], 0.01)
	assert.Greater(t, b.Std[FeatAmount], 0.0)
	// Zero-variance features keep the default deviation.
	assert.Equal(t, DefaultBaseline().Std[FeatHour], b.Std[FeatHour])
}

func TestFitBaseline_TooFewSamples_KeepsDefault(t *testing.T) {
	b := FitBaseline(nil)
	assert.Equal(t, DefaultBaseline(), b)
}

func TestClassifier_OrdersRiskSensibly(t *testing.T) {
	baseline := DefaultBaseline()
	c := NewClassifier(DefaultWeights(), defaultBias, baseline)

	calm := &domain.SenderSnapshot{
		AvgSendAmount:     100,
		CompletedSends:    50,
		PaidReceiverCount: 4,
		AccountAgeDays:    400,
		HourOfDay:         14,
	}
	shady := &domain.SenderSnapshot{
		AvgSendAmount:  20,
		SendsLastHour:  10,
		FailedRatio:    0.6,
		AccountAgeDays: 2,
		HourOfDay:      3,
	}

	low := c.Score(Vector(90, calm))
	high := c.Score(Vector(5000, shady))

	assert.Less(t, low, high)
	assert.Less(t, low, 0.5)
	assert.Greater(t, high, 0.5)
}

// fixedSamples satisfies SampleSource with a canned vector set.
type fixedSamples struct {
	vectors [][]float64
	err     error
}

func (f *fixedSamples) RecentTransferVectors(_ context.Context, _ time.Time, _ int) ([][]float64, error) {
	return f.vectors, f.err
}

func TestTrainer_RetrainOnce_SwapsScorer(t *testing.T) {
	engine := NewEngine(&stubHistory{snapshot: goodHistorySnapshot()},
		DefaultScorer(DefaultRuleConfig(), DefaultEngineWeights()), zerolog.Nop())

	before := engine.scorer.Load()

	samples := make([][]float64, 100)
	for i := range samples {
		v := make([]float64, FeatureCount)
		v[FeatAmount] = float64(i)
		samples[i] = v
	}
	tr := NewTrainer(engine, &fixedSamples{vectors: samples},
		DefaultRuleConfig(), DefaultEngineWeights(), time.Hour, 24*time.Hour, zerolog.Nop())

	require.NoError(t, tr.RetrainOnce(context.Background()))
	assert.NotSame(t, before, engine.scorer.Load())
}

func TestTrainer_TooFewSamples_KeepsScorer(t *testing.T) {
	engine := NewEngine(&stubHistory{snapshot: goodHistorySnapshot()},
		DefaultScorer(DefaultRuleConfig(), DefaultEngineWeights()), zerolog.Nop())
	before := engine.scorer.Load()

	tr := NewTrainer(engine, &fixedSamples{vectors: make([][]float64, 10)},
		DefaultRuleConfig(), DefaultEngineWeights(), time.Hour, 24*time.Hour, zerolog.Nop())

	require.NoError(t, tr.RetrainOnce(context.Background()))
	assert.Same(t, before, engine.scorer.Load())
}
