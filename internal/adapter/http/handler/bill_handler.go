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

// BillHandler handles bill payment endpoints.
type BillHandler struct {
	billSvc ports.BillPaymentService
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(billSvc ports.BillPaymentService) *BillHandler {
	return &BillHandler{billSvc: billSvc}
}

// ListItems handles GET /api/v1/bills/items.
func (h *BillHandler) ListItems(c *gin.Context) {
	country := strings.ToUpper(c.DefaultQuery("country", "NG"))

	items, err := h.billSvc.ListItems(c.Request.Context(), country)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// ValidateCustomer handles POST /api/v1/bills/validate.
func (h *BillHandler) ValidateCustomer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BillValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.billSvc.ValidateCustomer(c.Request.Context(), ports.BillValidationRequest{
		OwnerID:     ownerID,
		ItemCode:    req.ItemCode,
		CustomerRef: req.CustomerRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// PayBill handles POST /api/v1/bills/pay.
func (h *BillHandler) PayBill(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BillPayRequest
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

	result, err := h.billSvc.PayBill(c.Request.Context(), ports.BillPaymentRequest{
		OwnerID:     ownerID,
		ItemCode:    req.ItemCode,
		CustomerRef: req.CustomerRef,
		Amount:      amount,
		Currency:    strings.ToUpper(req.Currency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}
