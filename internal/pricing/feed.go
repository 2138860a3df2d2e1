// Package pricing supplies base FX rates per currency pair. The core
// applies its own spread on top; this package never does.
package pricing

import (
	"context"
	"sync"

	"quantumpay-core/pkg/apperror"

	"github.com/shopspring/decimal"
)

// StaticFeed is a table-driven rate feed. Rates are quoted against USD
// and cross pairs are derived through it. A deployment refreshes the
// table from the upstream pricing service; readers never block writers
// beyond the map swap.
type StaticFeed struct {
	mu     sync.RWMutex
	perUSD map[string]decimal.Decimal // 1 USD buys N units of currency
}

// NewStaticFeed creates a feed from per-USD rates. USD itself is implied.
func NewStaticFeed(perUSD map[string]decimal.Decimal) *StaticFeed {
	table := map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}
	for code, rate := range perUSD {
		table[code] = rate
	}
	return &StaticFeed{perUSD: table}
}

// DefaultRates is the shipped bootstrap table used until the first
// upstream refresh.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.92"),
		"GBP": decimal.RequireFromString("0.79"),
		"NGN": decimal.RequireFromString("1550"),
		"KES": decimal.RequireFromString("129"),
		"GHS": decimal.RequireFromString("15.6"),
		"ZAR": decimal.RequireFromString("18.2"),
		"BTC": decimal.RequireFromString("0.0000091"),
		"ETH": decimal.RequireFromString("0.00027"),
	}
}

// BaseRate implements ports.RateFeed: units of `to` per one unit of
// `from`, derived through USD.
func (f *StaticFeed) BaseRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fromUSD, ok := f.perUSD[from]
	if !ok || fromUSD.IsZero() {
		return decimal.Zero, apperror.ErrUnsupportedPair(from, to)
	}
	toUSD, ok := f.perUSD[to]
	if !ok {
		return decimal.Zero, apperror.ErrUnsupportedPair(from, to)
	}
	return toUSD.DivRound(fromUSD, 12), nil
}

// Refresh replaces the rate table.
func (f *StaticFeed) Refresh(perUSD map[string]decimal.Decimal) {
	table := map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}
	for code, rate := range perUSD {
		table[code] = rate
	}
	f.mu.Lock()
	f.perUSD = table
	f.mu.Unlock()
}
