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
)

// DepositServiceImpl implements ports.DepositService. Initiation only
// opens an inbound attempt and hands back funding instructions; the
// wallet credit lands later through the reconciliation intake.
type DepositServiceImpl struct {
	ledger      ports.LedgerService
	attemptRepo ports.AttemptRepository
	transactor  ports.DBTransactor
	router      ProviderRouter
	log         zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	ledger ports.LedgerService,
	attemptRepo ports.AttemptRepository,
	transactor ports.DBTransactor,
	router ProviderRouter,
	log zerolog.Logger,
) *DepositServiceImpl {
	return &DepositServiceImpl{
		ledger:      ledger,
		attemptRepo: attemptRepo,
		transactor:  transactor,
		router:      router,
		log:         log,
	}
}

func capabilityForMethod(method string) domain.Capability {
	if method == "virtual_account" {
		return domain.CapabilityVirtualAccount
	}
	return domain.CapabilityDeposit
}

// InitiateDeposit opens an INBOUND attempt, asks the rails for funding
// instructions, and leaves the attempt PENDING_APPROVAL until a webhook
// confirms the money arrived. No balance changes here.
func (s *DepositServiceImpl) InitiateDeposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositInstructions, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	// The target wallet must exist before the provider is involved so
	// the later credit cannot dangle.
	if _, err := s.ledger.GetOrCreateWallet(ctx, req.OwnerID, req.Currency); err != nil {
		return nil, err
	}

	txRef := newTxRef()
	now := time.Now().UTC()
	attempt := &domain.PaymentAttempt{
		ID:        uuid.New(),
		TxRef:     txRef,
		OwnerID:   req.OwnerID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.Method,
		Direction: domain.AttemptInbound,
		Status:    domain.AttemptStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create attempt: %w", err))
	}

	result, err := s.router.Execute(ctx, ports.ProviderExecuteRequest{
		Capability:     capabilityForMethod(req.Method),
		CustomerRef:    req.OwnerID.String(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: txRef,
	}, nil)
	if err != nil {
		s.markAttemptStatus(ctx, attempt.ID, domain.AttemptStatusFailed, nil)
		return nil, err
	}

	s.markAttemptStatus(ctx, attempt.ID, domain.AttemptStatusPendingApproval, &result.ProviderRef)

	s.log.Info().
		Str("tx_ref", txRef).
		Str("provider", result.Provider).
		Str("method", req.Method).
		Msg("deposit initiated")

	return &ports.DepositInstructions{
		TxRef:         txRef,
		Provider:      result.Provider,
		Method:        req.Method,
		Amount:        req.Amount,
		Currency:      req.Currency,
		AccountDetail: result.AccountDetail,
	}, nil
}

func (s *DepositServiceImpl) markAttemptStatus(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, providerRef *string) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to open tx for attempt status")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.attemptRepo.UpdateStatus(ctx, dbTx, id, status, providerRef); err != nil {
		s.log.Error().Err(err).Str("status", string(status)).Msg("failed to update attempt status")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to commit attempt status")
	}
}
