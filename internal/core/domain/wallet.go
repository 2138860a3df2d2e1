package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyClass distinguishes fiat rails from crypto rails.
type CurrencyClass string

const (
	CurrencyClassFiat   CurrencyClass = "FIAT"
	CurrencyClassCrypto CurrencyClass = "CRYPTO"
)

// Wallet is a per-(owner, currency) balance record. Balances are mutated
// only through the ledger's atomic adjustment path; the struct itself is a
// snapshot read from storage.
type Wallet struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	Currency          string          `json:"currency_code"`
	Class             CurrencyClass   `json:"currency_class"`
	Balance           decimal.Decimal `json:"balance"`
	ExternalAccountID *string         `json:"external_account_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CanCover reports whether the wallet can fund a debit of amount.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// ClassForCurrency maps a currency code to its class. Unknown codes are
// treated as fiat; crypto support is limited to the codes listed here.
func ClassForCurrency(code string) CurrencyClass {
	switch code {
	case "BTC", "ETH", "USDT", "USDC":
		return CurrencyClassCrypto
	default:
		return CurrencyClassFiat
	}
}
