package risk

import (
	"quantumpay-core/internal/core/domain"
)

// Feature vector layout. Order matters: the anomaly baseline and the
// classifier weights are indexed by these positions.
const (
	FeatAmount = iota
	FeatDeviation
	FeatVelocity
	FeatHistory
	FeatNovelty
	FeatAccountAge
	FeatFailedRatio
	FeatHour
	FeatureCount
)

// Vector engineers the scoring features from the proposed amount and the
// sender's freshly computed history snapshot.
func Vector(amount float64, s *domain.SenderSnapshot) []float64 {
	v := make([]float64, FeatureCount)
	v[FeatAmount] = amount

	// Deviation of this amount from the sender's personal norm. +1 keeps
	// brand-new senders (avg 0) from dividing by zero.
	v[FeatDeviation] = amount / (s.AvgSendAmount + 1)

	v[FeatVelocity] = float64(s.SendsLastHour)
	v[FeatHistory] = float64(s.CompletedSends)

	if s.PaidReceiverCount == 0 {
		v[FeatNovelty] = 1
	}

	v[FeatAccountAge] = s.AccountAgeDays
	v[FeatFailedRatio] = s.FailedRatio
	v[FeatHour] = float64(s.HourOfDay)
	return v
}
