package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a time-boxed, single-use priced conversion offer. It lives only
// in the quote cache; execution consumes and invalidates it.
type Quote struct {
	ID              string          `json:"quote_id"`
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	Amount          decimal.Decimal `json:"amount"`
	Rate            decimal.Decimal `json:"rate"` // spread already applied
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Expired checks the quote against wall-clock now; expiry is enforced at
// execution time, not by a background sweep.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
