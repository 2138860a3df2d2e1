package domain

import "time"

// Capability names a class of external-rail operation served by one or
// more interchangeable provider adapters.
type Capability string

const (
	CapabilityBillPayment    Capability = "BILL_PAYMENT"
	CapabilityVirtualAccount Capability = "VIRTUAL_ACCOUNT"
	CapabilityDeposit        Capability = "DEPOSIT"
)

// ProviderStatus is the router's view of an adapter's availability.
type ProviderStatus string

const (
	ProviderOperational ProviderStatus = "OPERATIONAL"
	ProviderDegraded    ProviderStatus = "DEGRADED"
	ProviderUnavailable ProviderStatus = "UNAVAILABLE"
)

// ProviderHealth is per-adapter mutable routing state, owned by the
// router. A degraded adapter is skipped until its cool-down elapses,
// after which the next routing attempt re-probes it.
type ProviderHealth struct {
	Provider  string         `json:"provider"`
	Status    ProviderStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Probable reports whether a non-operational adapter is due a re-probe.
func (h *ProviderHealth) Probable(now time.Time, coolDown time.Duration) bool {
	return now.Sub(h.CheckedAt) >= coolDown
}
