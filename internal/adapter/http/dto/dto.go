package dto

// CreateWalletRequest opens (or returns) a wallet for a currency.
type CreateWalletRequest struct {
	Currency string `json:"currency" binding:"required,min=3,max=5"`
}

// WalletResponse is the API shape of a wallet.
type WalletResponse struct {
	ID                string  `json:"id"`
	Currency          string  `json:"currency"`
	CurrencyClass     string  `json:"currency_class"`
	Balance           string  `json:"balance"`
	ExternalAccountID *string `json:"external_account_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// TransferRequest is the request body for an internal transfer.
type TransferRequest struct {
	ReceiverOwnerID string            `json:"receiver_owner_id" binding:"required,uuid"`
	Amount          string            `json:"amount" binding:"required"`
	Currency        string            `json:"currency" binding:"required,min=3,max=5"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TransactionResponse is the API shape of a transaction.
type TransactionResponse struct {
	ID              string            `json:"id"`
	SenderOwnerID   *string           `json:"sender_owner_id,omitempty"`
	ReceiverOwnerID *string           `json:"receiver_owner_id,omitempty"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	TransactionType string            `json:"transaction_type"`
	Status          string            `json:"status"`
	RiskScore       *float64          `json:"risk_score,omitempty"`
	RiskReasons     []string          `json:"risk_reasons,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       string            `json:"created_at"`
	CompletedAt     *string           `json:"completed_at,omitempty"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// BillValidateRequest identifies a customer on a biller's side.
type BillValidateRequest struct {
	ItemCode    string `json:"item_code" binding:"required,safe_id"`
	CustomerRef string `json:"customer_ref" binding:"required,max=100"`
}

// BillPayRequest is the request body for a routed bill payment.
type BillPayRequest struct {
	ItemCode    string `json:"item_code" binding:"required,safe_id"`
	CustomerRef string `json:"customer_ref" binding:"required,max=100"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required,min=3,max=5"`
}

// DepositRequest is the request body for a deposit initiation.
type DepositRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required,min=3,max=5"`
	Method   string `json:"method" binding:"required,safe_id"`
}

// QuoteRequest is the request body for an FX quote.
type QuoteRequest struct {
	FromCurrency string `json:"from_currency" binding:"required,min=3,max=5"`
	ToCurrency   string `json:"to_currency" binding:"required,min=3,max=5"`
	Amount       string `json:"amount" binding:"required"`
}

// QuoteResponse is the API shape of an FX quote.
type QuoteResponse struct {
	QuoteID         string `json:"quote_id"`
	FromCurrency    string `json:"from_currency"`
	ToCurrency      string `json:"to_currency"`
	Amount          string `json:"amount"`
	Rate            string `json:"rate"`
	ConvertedAmount string `json:"converted_amount"`
	ExpiresAt       string `json:"expires_at"`
}

// ProviderHealthResponse is one entry in the rail health report.
type ProviderHealthResponse struct {
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	LastError   string `json:"last_error,omitempty"`
	LastChecked string `json:"last_checked,omitempty"`
}
