package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a request-validation error; no state was touched.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrUnknownCurrency(code string) *AppError {
	return New("VAL_002", fmt.Sprintf("Unknown currency %q", code), http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_003", "Amount must be greater than zero", http.StatusBadRequest)
}

// ---- Ledger & Settlement (PAY / LED) ----

// ErrInsufficientFunds is a client-correctable condition, never retried
// automatically by the server.
func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrLedgerError covers any failure inside an atomic multi-wallet
// mutation; the surrounding transaction is always rolled back in full.
func ErrLedgerError(err error) *AppError {
	return Wrap("LED_001", "Ledger mutation failed", http.StatusInternalServerError, err)
}

// ---- Risk (RISK) ----

// ErrHighRiskBlocked marks a transaction rejected by the risk gate.
func ErrHighRiskBlocked(reasons []string) *AppError {
	e := New("RISK_001", "Transaction blocked by risk assessment", http.StatusUnprocessableEntity)
	if len(reasons) > 0 {
		e.Message = fmt.Sprintf("Transaction blocked by risk assessment: %v", reasons)
	}
	return e
}

// ---- Providers (PRV) ----

// ErrProviderUnavailable is raised only after the router exhausts every
// candidate adapter; the caller may retry later.
func ErrProviderUnavailable(err error) *AppError {
	return Wrap("PRV_001", "All payment providers are currently unavailable", http.StatusServiceUnavailable, err)
}

func ErrProviderDeclined(provider, detail string) *AppError {
	return New("PRV_002", fmt.Sprintf("Provider %s declined: %s", provider, detail), http.StatusBadGateway)
}

func ErrUnknownBillItem(item string) *AppError {
	return New("PRV_003", fmt.Sprintf("Bill item %q is not supported", item), http.StatusBadRequest)
}

// ---- FX (FX) ----

func ErrQuoteNotFound() *AppError {
	return New("FX_001", "Quote not found or expired", http.StatusNotFound)
}

func ErrUnsupportedPair(from, to string) *AppError {
	return New("FX_002", fmt.Sprintf("No rate available for %s/%s", from, to), http.StatusBadRequest)
}

// ---- Reconciliation (RCN) ----

// ErrReconciliationConflict marks a webhook that references an unknown or
// already-terminal attempt. Logged and dropped; providers receive 200.
func ErrReconciliationConflict(txRef string) *AppError {
	return New("RCN_001", fmt.Sprintf("No open payment attempt for reference %s", txRef), http.StatusOK)
}

// ---- Identity (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("AUTH_002", "Invalid webhook signature", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
