package provider

import (
	"sync"
	"time"

	"quantumpay-core/internal/core/domain"
)

// HealthRegistry tracks per-adapter availability. It is process-wide
// shared state read by every routing attempt; updates are simple flags
// with no cross-adapter coordination. A stale OPERATIONAL read costs one
// wasted attempt, never correctness.
type HealthRegistry struct {
	mu      sync.RWMutex
	records map[string]*domain.ProviderHealth
	now     func() time.Time
}

// NewHealthRegistry creates a registry where every adapter starts
// operational.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		records: make(map[string]*domain.ProviderHealth),
		now:     time.Now,
	}
}

// Get returns a copy of the adapter's health record.
func (r *HealthRegistry) Get(provider string) domain.ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[provider]; ok {
		return *rec
	}
	return domain.ProviderHealth{Provider: provider, Status: domain.ProviderOperational}
}

// MarkDegraded records a failure observed during a call.
func (r *HealthRegistry) MarkDegraded(provider string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &domain.ProviderHealth{
		Provider:  provider,
		Status:    domain.ProviderDegraded,
		CheckedAt: r.now(),
	}
	if err != nil {
		rec.LastError = err.Error()
	}
	r.records[provider] = rec
}

// MarkOperational clears a previous degradation.
func (r *HealthRegistry) MarkOperational(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[provider] = &domain.ProviderHealth{
		Provider:  provider,
		Status:    domain.ProviderOperational,
		CheckedAt: r.now(),
	}
}

// Usable reports whether routing should attempt the adapter: operational,
// or degraded with an elapsed cool-down (re-probe).
func (r *HealthRegistry) Usable(provider string, coolDown time.Duration) bool {
	rec := r.Get(provider)
	if rec.Status == domain.ProviderOperational {
		return true
	}
	return rec.Probable(r.now(), coolDown)
}
