package domain

// Risk reason codes emitted by the scoring signals.
const (
	RiskReasonAmountExceedsMax  = "TRANSACTION_AMOUNT_EXCEEDS_MAX_LIMIT"
	RiskReasonHighVelocity      = "HIGH_VELOCITY_LARGE_AMOUNT"
	RiskReasonAmountDeviation   = "AMOUNT_DEVIATES_FROM_PROFILE"
	RiskReasonNewRecipientLarge = "NEW_RECIPIENT_LARGE_AMOUNT"
	RiskReasonAnomalousPattern  = "ANOMALOUS_BEHAVIOR_PATTERN"
	RiskReasonFraudPattern      = "KNOWN_FRAUD_PATTERN"
	RiskReasonGeneralSuspicion  = "GENERAL_SUSPICION"
	RiskReasonSenderNotFound    = "FATAL_SENDER_NOT_FOUND"
)

// RiskAssessment is the ephemeral output of scoring one pending
// transaction. It is recomputed per settlement attempt and never
// persisted on its own; the score and reasons are copied onto the
// transaction record at the gate.
type RiskAssessment struct {
	Score    float64  `json:"score"` // in [0,1]
	HighRisk bool     `json:"high_risk"`
	Reasons  []string `json:"reasons"`
}

// SenderSnapshot is the behavioral feature input for scoring, computed
// fresh from the sender's transaction history at evaluation time.
type SenderSnapshot struct {
	AvgSendAmount     float64 // rolling average of completed sends
	CompletedSends    int64
	SendsLastHour     int64
	PaidReceiverCount int64 // completed sends to this receiver before now
	AccountAgeDays    float64
	FailedRatio       float64 // failed / total, proxy for credit standing
	HourOfDay         int
}
