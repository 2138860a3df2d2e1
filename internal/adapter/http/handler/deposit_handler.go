package handler

import (
	"strings"

	"quantumpay-core/internal/adapter/http/dto"
	"quantumpay-core/internal/adapter/http/middleware"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"
	"quantumpay-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler handles deposit initiation endpoints.
type DepositHandler struct {
	depositSvc ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositSvc ports.DepositService) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc}
}

// InitiateDeposit handles POST /api/v1/deposits. The wallet is credited
// later by the reconciliation intake, never here.
func (h *DepositHandler) InitiateDeposit(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, ok := dto.ParseAmount(req.Amount)
	if !ok {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	instructions, err := h.depositSvc.InitiateDeposit(c.Request.Context(), ports.DepositRequest{
		OwnerID:  ownerID,
		Amount:   amount,
		Currency: strings.ToUpper(req.Currency),
		Method:   req.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, instructions)
}
