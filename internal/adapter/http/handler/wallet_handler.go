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

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// ListWallets handles GET /api/v1/wallets.
func (h *WalletHandler) ListWallets(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallets, err := h.ledgerSvc.ListWallets(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, toWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// CreateWallet handles POST /api/v1/wallets. Opening an already-open
// currency returns the existing wallet unchanged.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.ledgerSvc.GetOrCreateWallet(c.Request.Context(), ownerID, strings.ToUpper(req.Currency))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// toWalletResponse converts domain.Wallet to DTO.
func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:                w.ID.String(),
		Currency:          w.Currency,
		CurrencyClass:     string(w.Class),
		Balance:           w.Balance.String(),
		ExternalAccountID: w.ExternalAccountID,
		CreatedAt:         w.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
