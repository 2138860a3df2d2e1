package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultCoolDown is how long a degraded adapter sits out before routing
// re-probes it.
const DefaultCoolDown = 5 * time.Minute

// AffordabilityCheck re-verifies that the caller can cover amount+fee for
// the specific adapter about to be tried. Returning false skips to the
// next candidate without aborting the route.
type AffordabilityCheck func(fee decimal.Decimal) bool

// Router fails over across an ordered list of interchangeable adapters
// per capability. First adapter-reported success wins.
type Router struct {
	tables   map[domain.Capability][]ports.ProviderAdapter
	health   *HealthRegistry
	coolDown time.Duration
	log      zerolog.Logger
}

// NewRouter builds a router over per-capability adapter priority lists.
func NewRouter(health *HealthRegistry, coolDown time.Duration, log zerolog.Logger) *Router {
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &Router{
		tables:   make(map[domain.Capability][]ports.ProviderAdapter),
		health:   health,
		coolDown: coolDown,
		log:      log,
	}
}

// Register appends an adapter to the candidate list of every capability
// it serves. Registration order is priority order.
func (r *Router) Register(adapter ports.ProviderAdapter) {
	for _, c := range adapter.Capabilities() {
		r.tables[c] = append(r.tables[c], adapter)
	}
}

// Candidates returns the ordered adapter list for a capability.
func (r *Router) Candidates(capability domain.Capability) []ports.ProviderAdapter {
	return r.tables[capability]
}

// Health exposes the registry for observability endpoints.
func (r *Router) Health() *HealthRegistry {
	return r.health
}

// ProviderNames lists every registered adapter once, in registration
// order within each capability.
func (r *Router) ProviderNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, adapters := range r.tables {
		for _, a := range adapters {
			if !seen[a.Name()] {
				seen[a.Name()] = true
				names = append(names, a.Name())
			}
		}
	}
	return names
}

// Get returns the health record for one adapter.
func (r *Router) Get(provider string) domain.ProviderHealth {
	return r.health.Get(provider)
}

// Execute routes req across the capability's candidates. For each
// candidate in priority order it: skips non-usable health records,
// resolves the candidate's own fee for the item, re-checks affordability
// with that fee, then attempts the call. Adapter failure degrades its
// health record and moves on; exhaustion returns PRV_001 referencing the
// last failure. afford may be nil when no balance applies (validation).
func (r *Router) Execute(ctx context.Context, req ports.ProviderExecuteRequest, afford AffordabilityCheck) (*ports.ProviderResult, error) {
	candidates := r.tables[req.Capability]
	if len(candidates) == 0 {
		return nil, apperror.ErrProviderUnavailable(fmt.Errorf("no adapters registered for %s", req.Capability))
	}
	// An item no rail carries is the caller's mistake, not an outage.
	if req.ItemCode != "" && !anyCarries(candidates, req.ItemCode, req.Amount) {
		return nil, apperror.ErrUnknownBillItem(req.ItemCode)
	}

	var lastErr error
	for _, adapter := range candidates {
		name := adapter.Name()

		if !r.health.Usable(name, r.coolDown) {
			r.log.Debug().Str("provider", name).Msg("skipping degraded provider")
			continue
		}

		fee, carried := adapter.Fee(req.ItemCode, req.Amount)
		if !carried {
			r.log.Debug().Str("provider", name).Str("item", req.ItemCode).Msg("provider does not carry item")
			continue
		}

		// Affordability is re-checked per candidate: fees differ per
		// adapter for the same logical item.
		if afford != nil && !afford(fee) {
			r.log.Debug().
				Str("provider", name).
				Str("fee", fee.String()).
				Msg("fee makes operation unaffordable, trying next provider")
			continue
		}

		result, err := adapter.Execute(ctx, req)
		if err != nil {
			// A business decline means the rail answered and rejected this
			// request. Another rail would hear the same story; the decline
			// surfaces as-is and the rail stays operational.
			if isDecline(err) {
				r.health.MarkOperational(name)
				return nil, err
			}
			lastErr = fmt.Errorf("%s: %w", name, err)
			r.health.MarkDegraded(name, err)
			r.log.Warn().Err(err).Str("provider", name).Msg("provider call failed, failing over")
			continue
		}

		r.health.MarkOperational(name)
		result.Provider = name
		result.Fee = fee
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no usable adapter for %s", req.Capability)
	}
	return nil, apperror.ErrProviderUnavailable(lastErr)
}

// anyCarries reports whether at least one candidate carries the item,
// regardless of current health.
func anyCarries(candidates []ports.ProviderAdapter, itemCode string, amount decimal.Decimal) bool {
	for _, a := range candidates {
		if _, carried := a.Fee(itemCode, amount); carried {
			return true
		}
	}
	return false
}

// isDecline reports whether a rail error is a business rejection rather
// than a transport or availability failure.
func isDecline(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == "PRV_002"
}

// Validate routes a customer-validation call with the same failover
// semantics but no fee or affordability concerns.
func (r *Router) Validate(ctx context.Context, capability domain.Capability, itemCode, customerRef string) (*ports.CustomerValidation, error) {
	candidates := r.tables[capability]
	if itemCode != "" && !anyCarries(candidates, itemCode, decimal.Zero) {
		return nil, apperror.ErrUnknownBillItem(itemCode)
	}
	var lastErr error
	for _, adapter := range candidates {
		name := adapter.Name()
		if !r.health.Usable(name, r.coolDown) {
			continue
		}
		if _, carried := adapter.Fee(itemCode, decimal.Zero); !carried {
			continue
		}

		v, err := adapter.Validate(ctx, itemCode, customerRef)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			r.health.MarkDegraded(name, err)
			continue
		}
		r.health.MarkOperational(name)
		v.Provider = name
		return v, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no usable adapter for %s", capability)
	}
	return nil, apperror.ErrProviderUnavailable(lastErr)
}

// RunHealthChecks probes every registered adapter once. It is meant to be
// run periodically in the background.
func (r *Router) RunHealthChecks(ctx context.Context) {
	seen := make(map[string]bool)
	for _, adapters := range r.tables {
		for _, a := range adapters {
			if seen[a.Name()] {
				continue
			}
			seen[a.Name()] = true
			if err := a.CheckHealth(ctx); err != nil {
				r.health.MarkDegraded(a.Name(), err)
				r.log.Warn().Err(err).Str("provider", a.Name()).Msg("provider health check failed")
				continue
			}
			r.health.MarkOperational(a.Name())
		}
	}
}
