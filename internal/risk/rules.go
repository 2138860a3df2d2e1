package risk

import (
	"quantumpay-core/internal/core/domain"
)

// RuleConfig holds the deterministic hard-rule thresholds. All values are
// deployment configuration, not constants.
type RuleConfig struct {
	MaxAmount           float64 // absolute single-transaction ceiling
	LargeAmount         float64 // "large" for velocity and novelty rules
	VelocityThreshold   int64   // sends in the trailing hour
	DeviationMultiplier float64 // multiple of the sender's average
	PoorStandingRatio   float64 // failed ratio above which standing is poor
}

// DefaultRuleConfig returns the shipped rule thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MaxAmount:           20000,
		LargeAmount:         1000,
		VelocityThreshold:   5,
		DeviationMultiplier: 10,
		PoorStandingRatio:   0.3,
	}
}

// RuleSet is the rule-based signal. Each triggered rule sets a floor on
// the rule score and appends its reason code.
type RuleSet struct {
	cfg RuleConfig
}

// NewRuleSet creates a rule evaluator.
func NewRuleSet(cfg RuleConfig) *RuleSet {
	return &RuleSet{cfg: cfg}
}

// Evaluate returns the rule score floor and the reason codes of every
// triggered rule.
func (r *RuleSet) Evaluate(amount float64, s *domain.SenderSnapshot) (float64, []string) {
	score := 0.0
	var reasons []string

	floor := func(f float64, reason string) {
		if f > score {
			score = f
		}
		reasons = append(reasons, reason)
	}

	if amount > r.cfg.MaxAmount {
		floor(1.0, domain.RiskReasonAmountExceedsMax)
	}

	if s.SendsLastHour >= r.cfg.VelocityThreshold && amount >= r.cfg.LargeAmount {
		floor(0.9, domain.RiskReasonHighVelocity)
	}

	if s.AvgSendAmount > 0 && amount > r.cfg.DeviationMultiplier*s.AvgSendAmount {
		floor(0.8, domain.RiskReasonAmountDeviation)
	}

	if s.PaidReceiverCount == 0 && amount >= r.cfg.LargeAmount && s.FailedRatio > r.cfg.PoorStandingRatio {
		floor(0.85, domain.RiskReasonNewRecipientLarge)
	}

	return score, reasons
}
