package ports

import (
	"context"

	"quantumpay-core/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ProviderAdapter is the shared contract every external rail implements.
// Adapters are the only code aware of provider-specific wire shapes.
type ProviderAdapter interface {
	Name() string
	Capabilities() []domain.Capability
	// Fee resolves this adapter's fee for a logical item and amount.
	// Returns false when the adapter does not carry the item.
	Fee(itemCode string, amount decimal.Decimal) (decimal.Decimal, bool)
	Validate(ctx context.Context, itemCode, customerRef string) (*CustomerValidation, error)
	Execute(ctx context.Context, req ProviderExecuteRequest) (*ProviderResult, error)
	CheckHealth(ctx context.Context) error
	// Items lists the adapter's supported bill items for a country.
	Items(country string) []BillItem
}

// ProviderExecuteRequest is the abstract execute call on a rail.
type ProviderExecuteRequest struct {
	Capability     domain.Capability
	ItemCode       string
	CustomerRef    string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string // our tx_ref; providers must dedupe on it
}

// ProviderResult is the adapter-reported outcome of an execute call.
type ProviderResult struct {
	Provider      string
	ProviderRef   string
	Fee           decimal.Decimal
	Pending       bool              // true when confirmation arrives via webhook
	AccountDetail map[string]string // populated for virtual-account issuance
}

// RateFeed supplies base FX rates per currency pair. The core applies its
// own spread on top.
type RateFeed interface {
	BaseRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
