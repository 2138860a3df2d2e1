package risk

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"

	"github.com/rs/zerolog"
)

// Weights configures how the three signals combine and where the
// high-risk cut lives. Deployment configuration, not constants.
type Weights struct {
	Supervised   float64
	Unsupervised float64
	Rule         float64
	Threshold    float64
	// Per-signal reason thresholds: a signal crossing its own threshold
	// contributes a reason code even when the blend stays below the gate.
	AnomalyReason    float64
	ClassifierReason float64
}

// DefaultEngineWeights returns the shipped blend: 0.5 supervised,
// 0.25 unsupervised, 0.25 rules, high risk above 0.65.
func DefaultEngineWeights() Weights {
	return Weights{
		Supervised:       0.5,
		Unsupervised:     0.25,
		Rule:             0.25,
		Threshold:        0.65,
		AnomalyReason:    0.7,
		ClassifierReason: 0.7,
	}
}

// CompositeScorer blends the anomaly detector, the classifier, and the
// rule set into one assessment. It is immutable once built; retraining
// builds a fresh one and swaps it in.
type CompositeScorer struct {
	detector   *AnomalyDetector
	classifier *Classifier
	rules      *RuleSet
	weights    Weights
}

// NewCompositeScorer assembles the three-signal scorer.
func NewCompositeScorer(detector *AnomalyDetector, classifier *Classifier, rules *RuleSet, weights Weights) *CompositeScorer {
	return &CompositeScorer{
		detector:   detector,
		classifier: classifier,
		rules:      rules,
		weights:    weights,
	}
}

// DefaultScorer builds the cold-start scorer from shipped parameters.
func DefaultScorer(ruleCfg RuleConfig, weights Weights) *CompositeScorer {
	baseline := DefaultBaseline()
	return NewCompositeScorer(
		NewAnomalyDetector(baseline),
		NewClassifier(DefaultWeights(), defaultBias, baseline),
		NewRuleSet(ruleCfg),
		weights,
	)
}

// Score implements ports.Scorer.
func (s *CompositeScorer) Score(_ context.Context, tx *domain.Transaction, snapshot *domain.SenderSnapshot) domain.RiskAssessment {
	amount := tx.Amount.InexactFloat64()
	v := Vector(amount, snapshot)

	unsupervised := s.detector.Score(v)
	supervised := s.classifier.Score(v)
	ruleScore, reasons := s.rules.Evaluate(amount, snapshot)

	final := s.weights.Supervised*supervised +
		s.weights.Unsupervised*unsupervised +
		s.weights.Rule*ruleScore

	// A triggered rule floors the blend: hard rules are not outvoted by
	// quiet statistical signals.
	if ruleScore > final {
		final = ruleScore
	}
	if final > 1 {
		final = 1
	}

	if unsupervised > s.weights.AnomalyReason {
		reasons = append(reasons, domain.RiskReasonAnomalousPattern)
	}
	if supervised > s.weights.ClassifierReason {
		reasons = append(reasons, domain.RiskReasonFraudPattern)
	}

	highRisk := final > s.weights.Threshold
	if highRisk && len(reasons) == 0 {
		reasons = append(reasons, domain.RiskReasonGeneralSuspicion)
	}

	return domain.RiskAssessment{
		Score:    final,
		HighRisk: highRisk,
		Reasons:  reasons,
	}
}

// Engine implements ports.RiskEngine: it computes the sender snapshot and
// delegates scoring to the currently active scorer. The scorer pointer is
// swapped atomically by the trainer, never mutated mid-use.
type Engine struct {
	history ports.SenderHistoryRepository
	scorer  atomic.Pointer[scorerHolder]
	log     zerolog.Logger
}

type scorerHolder struct {
	scorer ports.Scorer
}

// NewEngine creates a risk engine with the given initial scorer.
func NewEngine(history ports.SenderHistoryRepository, scorer ports.Scorer, log zerolog.Logger) *Engine {
	e := &Engine{history: history, log: log}
	e.scorer.Store(&scorerHolder{scorer: scorer})
	return e
}

// SwapScorer atomically replaces the active scoring function. In-flight
// evaluations finish on the scorer they started with.
func (e *Engine) SwapScorer(s ports.Scorer) {
	e.scorer.Store(&scorerHolder{scorer: s})
	e.log.Info().Msg("risk scorer swapped")
}

// maxRisk is the forced assessment for a missing sender record.
func maxRisk() domain.RiskAssessment {
	return domain.RiskAssessment{
		Score:    1,
		HighRisk: true,
		Reasons:  []string{domain.RiskReasonSenderNotFound},
	}
}

// Evaluate scores a pending transaction. It must be called before any
// ledger mutation and must not run while wallet locks are held.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) (domain.RiskAssessment, error) {
	if tx.SenderOwnerID == nil {
		return maxRisk(), nil
	}

	snapshot, err := e.history.SenderSnapshot(ctx, *tx.SenderOwnerID, tx.ReceiverOwnerID, time.Now().UTC())
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("sender snapshot: %w", err)
	}
	if snapshot == nil {
		e.log.Warn().
			Str("sender_id", tx.SenderOwnerID.String()).
			Msg("sender record missing, forcing maximum risk")
		return maxRisk(), nil
	}

	assessment := e.scorer.Load().scorer.Score(ctx, tx, snapshot)

	e.log.Debug().
		Str("tx_id", tx.ID.String()).
		Float64("score", assessment.Score).
		Bool("high_risk", assessment.HighRisk).
		Strs("reasons", assessment.Reasons).
		Msg("risk assessment computed")

	return assessment, nil
}
