package handler

import (
	"strings"

	"quantumpay-core/internal/adapter/http/dto"
	"quantumpay-core/internal/adapter/http/middleware"
	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"
	"quantumpay-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// FXHandler handles currency exchange endpoints.
type FXHandler struct {
	fxSvc ports.FXService
}

// NewFXHandler creates a new FXHandler.
func NewFXHandler(fxSvc ports.FXService) *FXHandler {
	return &FXHandler{fxSvc: fxSvc}
}

// GetQuote handles POST /api/v1/fx/quotes.
func (h *FXHandler) GetQuote(c *gin.Context) {
	if _, ok := middleware.OwnerID(c); !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, ok := dto.ParseAmount(req.Amount)
	if !ok {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	quote, err := h.fxSvc.GetQuote(c.Request.Context(),
		strings.ToUpper(req.FromCurrency), strings.ToUpper(req.ToCurrency), amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toQuoteResponse(quote))
}

// ExecuteQuote handles POST /api/v1/fx/quotes/:id/execute.
func (h *FXHandler) ExecuteQuote(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	quoteID := c.Param("id")
	if quoteID == "" {
		response.Error(c, apperror.Validation("quote id is required"))
		return
	}

	txn, err := h.fxSvc.ExecuteQuote(c.Request.Context(), quoteID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// toQuoteResponse converts domain.Quote to DTO.
func toQuoteResponse(q *domain.Quote) dto.QuoteResponse {
	return dto.QuoteResponse{
		QuoteID:         q.ID,
		FromCurrency:    q.FromCurrency,
		ToCurrency:      q.ToCurrency,
		Amount:          q.Amount.String(),
		Rate:            q.Rate.String(),
		ConvertedAmount: q.ConvertedAmount.String(),
		ExpiresAt:       q.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
