package risk

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SampleSource supplies recent legitimate feature vectors for baseline
// re-estimation.
type SampleSource interface {
	RecentTransferVectors(ctx context.Context, since time.Time, limit int) ([][]float64, error)
}

// Trainer is the scheduled retraining worker. It runs detached from
// request handling; a failed cycle is logged and the previous scorer
// keeps serving.
type Trainer struct {
	engine   *Engine
	samples  SampleSource
	ruleCfg  RuleConfig
	weights  Weights
	interval time.Duration
	window   time.Duration
	log      zerolog.Logger
}

// NewTrainer creates a retraining worker.
func NewTrainer(engine *Engine, samples SampleSource, ruleCfg RuleConfig, weights Weights, interval, window time.Duration, log zerolog.Logger) *Trainer {
	return &Trainer{
		engine:   engine,
		samples:  samples,
		ruleCfg:  ruleCfg,
		weights:  weights,
		interval: interval,
		window:   window,
		log:      log,
	}
}

// Run retrains on a fixed interval until ctx is cancelled.
func (t *Trainer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.RetrainOnce(ctx); err != nil {
				t.log.Error().Err(err).Msg("risk retrain cycle failed")
			}
		}
	}
}

// RetrainOnce re-estimates the feature baseline from recent traffic and
// atomically swaps in a scorer built on it.
func (t *Trainer) RetrainOnce(ctx context.Context) error {
	since := time.Now().UTC().Add(-t.window)
	vectors, err := t.samples.RecentTransferVectors(ctx, since, 5000)
	if err != nil {
		return err
	}
	if len(vectors) < 50 {
		t.log.Debug().Int("samples", len(vectors)).Msg("too few samples, keeping current scorer")
		return nil
	}

	baseline := FitBaseline(vectors)
	scorer := NewCompositeScorer(
		NewAnomalyDetector(baseline),
		NewClassifier(DefaultWeights(), defaultBias, baseline),
		NewRuleSet(t.ruleCfg),
		t.weights,
	)
	t.engine.SwapScorer(scorer)

	t.log.Info().Int("samples", len(vectors)).Msg("risk scorer retrained")
	return nil
}
