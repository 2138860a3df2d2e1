package handler

import (
	"math"
	"strconv"

	"quantumpay-core/internal/adapter/http/dto"
	"quantumpay-core/internal/adapter/http/middleware"
	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"
	"quantumpay-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles internal transfer and transaction endpoints.
type TransferHandler struct {
	settlementSvc ports.SettlementService
	txRepo        ports.TransactionRepository
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(settlementSvc ports.SettlementService, txRepo ports.TransactionRepository) *TransferHandler {
	return &TransferHandler{settlementSvc: settlementSvc, txRepo: txRepo}
}

// CreateTransfer handles POST /api/v1/transfers. The transfer is recorded
// as PENDING and settled synchronously; the response carries the terminal
// state.
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
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
	receiverID, err := uuid.Parse(req.ReceiverOwnerID)
	if err != nil {
		response.Error(c, apperror.Validation("receiver_owner_id must be a UUID"))
		return
	}

	pending, err := h.settlementSvc.CreateTransfer(c.Request.Context(), ports.TransferRequest{
		SenderOwnerID:   ownerID,
		ReceiverOwnerID: receiverID,
		Amount:          amount,
		Currency:        req.Currency,
		Metadata:        req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	settled, err := h.settlementSvc.Settle(c.Request.Context(), pending.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(settled))
}

// GetTransaction handles GET /api/v1/transactions/:id.
func (h *TransferHandler) GetTransaction(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	txn, err := h.txRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if txn == nil || !ownerParty(txn, ownerID) {
		response.Error(c, apperror.ErrNotFound("Transaction"))
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// ListTransactions handles GET /api/v1/transactions.
func (h *TransferHandler) ListTransactions(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.TransactionListParams{
		OwnerID:  ownerID,
		Page:     page,
		PageSize: pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	txns, total, err := h.txRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// ownerParty reports whether the owner is on either side of the movement.
func ownerParty(txn *domain.Transaction, ownerID uuid.UUID) bool {
	if txn.SenderOwnerID != nil && *txn.SenderOwnerID == ownerID {
		return true
	}
	return txn.ReceiverOwnerID != nil && *txn.ReceiverOwnerID == ownerID
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(txn *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:              txn.ID.String(),
		Amount:          txn.Amount.String(),
		Currency:        txn.Currency,
		TransactionType: string(txn.Type),
		Status:          string(txn.Status),
		RiskScore:       txn.RiskScore,
		RiskReasons:     txn.RiskReasons,
		Metadata:        txn.Metadata,
		CreatedAt:       txn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if txn.SenderOwnerID != nil {
		s := txn.SenderOwnerID.String()
		resp.SenderOwnerID = &s
	}
	if txn.ReceiverOwnerID != nil {
		s := txn.ReceiverOwnerID.String()
		resp.ReceiverOwnerID = &s
	}
	if txn.CompletedAt != nil {
		s := txn.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &s
	}
	return resp
}
