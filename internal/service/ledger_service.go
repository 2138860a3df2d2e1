package service

import (
	"context"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService on top of pessimistic
// per-wallet row locking. Adjustments to different wallets never
// serialize against each other.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(walletRepo ports.WalletRepository, transactor ports.DBTransactor, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		transactor: transactor,
		log:        log,
	}
}

// AdjustBalance applies a signed amount to one wallet under its row lock.
// The resulting balance must never go negative.
func (s *LedgerServiceImpl) AdjustBalance(ctx context.Context, walletID uuid.UUID, signedAmount decimal.Decimal) (decimal.Decimal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrNotFound("wallet")
	}

	newBalance := wallet.Balance.Add(signedAmount)
	if newBalance.IsNegative() {
		return decimal.Zero, apperror.ErrInsufficientFunds()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, walletID, newBalance); err != nil {
		return decimal.Zero, apperror.ErrLedgerError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return decimal.Zero, apperror.ErrLedgerError(fmt.Errorf("commit: %w", err))
	}

	s.log.Debug().
		Str("wallet_id", walletID.String()).
		Str("delta", signedAmount.String()).
		Str("balance", newBalance.String()).
		Msg("balance adjusted")

	return newBalance, nil
}

// GetOrCreateWallet returns the (owner, currency) wallet, creating it on
// first need. Safe under concurrent first-use: the insert is
// conflict-tolerant and the canonical row is re-read afterwards.
func (s *LedgerServiceImpl) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID, currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	now := time.Now().UTC()
	candidate := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  currency,
		Class:     domain.ClassForCurrency(currency),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, candidate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	// A concurrent first-use may have won the insert; the re-read returns
	// whichever row landed.
	wallet, err = s.walletRepo.GetByOwner(ctx, ownerID, currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reread wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet vanished after create: %s/%s", ownerID, currency))
	}

	s.log.Info().
		Str("owner_id", ownerID.String()).
		Str("currency", currency).
		Msg("wallet ready")

	return wallet, nil
}

// ListWallets returns all wallets for an owner.
func (s *LedgerServiceImpl) ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}
