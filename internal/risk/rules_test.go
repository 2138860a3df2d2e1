package risk

import (
	"testing"

	"quantumpay-core/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestRuleSet_NoRulesTriggered(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	s := &domain.SenderSnapshot{AvgSendAmount: 100, PaidReceiverCount: 3}
	score, reasons := r.Evaluate(150, s)

	assert.Zero(t, score)
	assert.Empty(t, reasons)
}

func TestRuleSet_MaxAmountCeiling(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	score, reasons := r.Evaluate(20001, &domain.SenderSnapshot{AvgSendAmount: 15000, PaidReceiverCount: 1})

	assert.Equal(t, 1.0, score)
	assert.Contains(t, reasons, domain.RiskReasonAmountExceedsMax)
}

func TestRuleSet_VelocityPlusLargeAmount(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	s := &domain.SenderSnapshot{AvgSendAmount: 1200, SendsLastHour: 5, PaidReceiverCount: 2}
	score, reasons := r.Evaluate(1000, s)

	assert.Equal(t, 0.9, score)
	assert.Contains(t, reasons, domain.RiskReasonHighVelocity)
}

func TestRuleSet_DeviationFromPersonalNorm(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	s := &domain.SenderSnapshot{AvgSendAmount: 50, PaidReceiverCount: 2}
	score, reasons := r.Evaluate(501, s)

	assert.Equal(t, 0.8, score)
	assert.Contains(t, reasons, domain.RiskReasonAmountDeviation)
}

func TestRuleSet_NewRecipientLargeAmountPoorStanding(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	s := &domain.SenderSnapshot{
		AvgSendAmount:     900,
		PaidReceiverCount: 0,
		FailedRatio:       0.5,
	}
	score, reasons := r.Evaluate(1000, s)

	assert.Equal(t, 0.85, score)
	assert.Contains(t, reasons, domain.RiskReasonNewRecipientLarge)
}

func TestRuleSet_MultipleRules_HighestFloorWins(t *testing.T) {
	r := NewRuleSet(DefaultRuleConfig())

	// Over the ceiling, high velocity, and far from norm all at once.
	s := &domain.SenderSnapshot{AvgSendAmount: 100, SendsLastHour: 9, PaidReceiverCount: 0, FailedRatio: 0.9}
	score, reasons := r.Evaluate(25000, s)

	assert.Equal(t, 1.0, score)
	assert.Len(t, reasons, 4)
}
