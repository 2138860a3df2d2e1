package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", http.StatusPaymentRequired},
		{"HighRiskBlocked", ErrHighRiskBlocked(nil), "RISK_001", http.StatusUnprocessableEntity},
		{"ProviderUnavailable", ErrProviderUnavailable(fmt.Errorf("last failure")), "PRV_001", http.StatusServiceUnavailable},
		{"LedgerError", ErrLedgerError(fmt.Errorf("rollback")), "LED_001", http.StatusInternalServerError},
		{"QuoteNotFound", ErrQuoteNotFound(), "FX_001", http.StatusNotFound},
		{"Validation", Validation("bad input"), "VAL_001", http.StatusBadRequest},
		{"InvalidToken", ErrInvalidToken(), "AUTH_001", http.StatusUnauthorized},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestErrHighRiskBlocked_ReasonsInMessage(t *testing.T) {
	err := ErrHighRiskBlocked([]string{"TRANSACTION_AMOUNT_EXCEEDS_MAX_LIMIT"})
	assert.Contains(t, err.Message, "TRANSACTION_AMOUNT_EXCEEDS_MAX_LIMIT")
}
