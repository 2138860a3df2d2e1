package service

import (
	"context"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// webhookDedupTTL is how long a processed tx_ref stays in the fast-path
// replay guard. The attempt row's terminal status is the durable guard.
const webhookDedupTTL = 24 * time.Hour

// ReconciliationServiceImpl implements ports.ReconciliationService:
// idempotent intake of asynchronous provider confirmations.
type ReconciliationServiceImpl struct {
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	attemptRepo ports.AttemptRepository
	transactor  ports.DBTransactor
	idemCache   ports.IdempotencyCache
	notifier    ports.Notifier
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	attemptRepo ports.AttemptRepository,
	transactor ports.DBTransactor,
	idemCache ports.IdempotencyCache,
	notifier ports.Notifier,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		attemptRepo: attemptRepo,
		transactor:  transactor,
		idemCache:   idemCache,
		notifier:    notifier,
		log:         log,
	}
}

// HandleProviderWebhook applies one provider confirmation. Replays and
// confirmations for terminal attempts are silent no-ops; unknown
// references are logged and dropped so providers stop retrying them.
func (s *ReconciliationServiceImpl) HandleProviderWebhook(ctx context.Context, event ports.ProviderEvent) error {
	if event.TxRef == "" {
		return apperror.Validation("tx_ref is required")
	}

	dedupKey := "webhook:" + event.Provider + ":" + event.TxRef
	if s.idemCache != nil {
		if cached, err := s.idemCache.Get(ctx, dedupKey); err == nil && cached != nil {
			s.log.Debug().Str("tx_ref", event.TxRef).Msg("webhook replay dropped by cache")
			return nil
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	attempt, err := s.attemptRepo.GetByTxRefForUpdate(ctx, dbTx, event.TxRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock attempt: %w", err))
	}
	if attempt == nil {
		s.log.Warn().
			Str("provider", event.Provider).
			Str("tx_ref", event.TxRef).
			Msg("webhook references unknown attempt, dropping")
		return apperror.ErrReconciliationConflict(event.TxRef)
	}
	if attempt.IsTerminal() {
		s.log.Debug().
			Str("tx_ref", event.TxRef).
			Str("status", string(attempt.Status)).
			Msg("webhook for terminal attempt, no-op")
		return nil
	}

	applied := true
	if event.Succeeded {
		applied, err = s.applySuccess(ctx, dbTx, attempt, event)
	} else {
		err = s.applyFailure(ctx, dbTx, attempt, event)
	}
	if err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrLedgerError(fmt.Errorf("commit reconciliation: %w", err))
	}

	// A held attempt stays open and uncached so a corrected notification
	// can still reach it.
	if !applied {
		return nil
	}

	if s.idemCache != nil {
		if err := s.idemCache.Set(ctx, dedupKey, []byte("1"), webhookDedupTTL); err != nil {
			s.log.Warn().Err(err).Str("tx_ref", event.TxRef).Msg("failed to record webhook dedup key")
		}
	}

	s.notify(attempt, event)
	return nil
}

// applySuccess credits the owner's wallet (inbound) and records the
// settled transaction in the same unit that flips the attempt terminal.
// Outbound attempts are debited before the rail confirms, so success only
// confirms. Returns applied=false when the attempt is held open instead.
func (s *ReconciliationServiceImpl) applySuccess(ctx context.Context, dbTx pgx.Tx, attempt *domain.PaymentAttempt, event ports.ProviderEvent) (bool, error) {
	if attempt.Direction == domain.AttemptInbound {
		// The provider's figures must match what the attempt recorded. A
		// mismatched confirmation is held for manual review rather than
		// credited; the attempt stays open for a corrected notification.
		if mismatch(attempt, event) {
			s.log.Error().
				Str("tx_ref", attempt.TxRef).
				Str("provider", event.Provider).
				Str("expected", attempt.Amount.String()+" "+attempt.Currency).
				Str("reported", event.Amount.String()+" "+event.Currency).
				Msg("provider confirmed a different amount, holding attempt for review")
			providerRef := event.ProviderRef
			if err := s.attemptRepo.UpdateStatus(ctx, dbTx, attempt.ID, domain.AttemptStatusPendingApproval, &providerRef); err != nil {
				return false, apperror.ErrLedgerError(fmt.Errorf("hold attempt: %w", err))
			}
			return false, nil
		}

		wallet, err := s.lockOrCreateWallet(ctx, dbTx, attempt)
		if err != nil {
			return false, err
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance.Add(attempt.Amount)); err != nil {
			return false, apperror.ErrLedgerError(fmt.Errorf("credit wallet: %w", err))
		}

		now := time.Now().UTC()
		owner := attempt.OwnerID
		txn := &domain.Transaction{
			ID:               uuid.New(),
			ReceiverOwnerID:  &owner,
			ReceiverWalletID: &wallet.ID,
			Amount:           attempt.Amount,
			Currency:         attempt.Currency,
			Type:             domain.TransactionTypeDeposit,
			Status:           domain.TransactionStatusCompleted,
			Metadata: map[string]string{
				"provider":     event.Provider,
				"provider_ref": event.ProviderRef,
				"tx_ref":       attempt.TxRef,
				"method":       attempt.Method,
			},
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return false, apperror.ErrLedgerError(fmt.Errorf("record deposit: %w", err))
		}
	}

	providerRef := event.ProviderRef
	if err := s.attemptRepo.UpdateStatus(ctx, dbTx, attempt.ID, domain.AttemptStatusSuccessful, &providerRef); err != nil {
		return false, apperror.ErrLedgerError(fmt.Errorf("mark attempt successful: %w", err))
	}

	s.log.Info().
		Str("tx_ref", attempt.TxRef).
		Str("provider", event.Provider).
		Str("direction", string(attempt.Direction)).
		Msg("provider confirmation applied")
	return true, nil
}

// mismatch reports whether the provider's confirmed figures disagree with
// the attempt. Rails that omit the amount are taken at their reference.
func mismatch(attempt *domain.PaymentAttempt, event ports.ProviderEvent) bool {
	if !event.Amount.IsZero() && !event.Amount.Equal(attempt.Amount) {
		return true
	}
	if event.Currency != "" && event.Currency != attempt.Currency {
		return true
	}
	return false
}

// lockOrCreateWallet locks the destination wallet, provisioning it first
// when the confirmation is the owner's first sight of this currency.
func (s *ReconciliationServiceImpl) lockOrCreateWallet(ctx context.Context, dbTx pgx.Tx, attempt *domain.PaymentAttempt) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, attempt.OwnerID, attempt.Currency)
	if err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	now := time.Now().UTC()
	candidate := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   attempt.OwnerID,
		Currency:  attempt.Currency,
		Class:     domain.ClassForCurrency(attempt.Currency),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, candidate); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("create wallet: %w", err))
	}
	wallet, err = s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, attempt.OwnerID, attempt.Currency)
	if err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("relock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("wallet vanished after create: %s/%s", attempt.OwnerID, attempt.Currency))
	}
	return wallet, nil
}

// applyFailure marks the attempt failed. An outbound failure also needs
// a compensating credit, but only when the attempt's debit was actually
// taken. An attempt the rail rejected before any money moved gets no
// refund; crediting it would create funds from nothing.
func (s *ReconciliationServiceImpl) applyFailure(ctx context.Context, dbTx pgx.Tx, attempt *domain.PaymentAttempt, event ports.ProviderEvent) error {
	if attempt.Direction == domain.AttemptOutbound && attempt.Debited {
		wallet, err := s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, attempt.OwnerID, attempt.Currency)
		if err != nil {
			return apperror.ErrLedgerError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrLedgerError(fmt.Errorf("no %s wallet for owner %s", attempt.Currency, attempt.OwnerID))
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance.Add(attempt.Amount)); err != nil {
			return apperror.ErrLedgerError(fmt.Errorf("compensating credit: %w", err))
		}

		now := time.Now().UTC()
		owner := attempt.OwnerID
		txn := &domain.Transaction{
			ID:               uuid.New(),
			ReceiverOwnerID:  &owner,
			ReceiverWalletID: &wallet.ID,
			Amount:           attempt.Amount,
			Currency:         attempt.Currency,
			Type:             domain.TransactionTypeRefund,
			Status:           domain.TransactionStatusCompleted,
			Metadata: map[string]string{
				"provider": event.Provider,
				"tx_ref":   attempt.TxRef,
				"reason":   event.FailureNote,
			},
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return apperror.ErrLedgerError(fmt.Errorf("record reversal: %w", err))
		}
	}

	if err := s.attemptRepo.UpdateStatus(ctx, dbTx, attempt.ID, domain.AttemptStatusFailed, nil); err != nil {
		return apperror.ErrLedgerError(fmt.Errorf("mark attempt failed: %w", err))
	}

	s.log.Warn().
		Str("tx_ref", attempt.TxRef).
		Str("provider", event.Provider).
		Str("note", event.FailureNote).
		Str("direction", string(attempt.Direction)).
		Msg("provider reported failure")
	return nil
}

func (s *ReconciliationServiceImpl) notify(attempt *domain.PaymentAttempt, event ports.ProviderEvent) {
	if s.notifier == nil {
		return
	}
	title, body := "Payment update", fmt.Sprintf("Reference %s was not completed", attempt.TxRef)
	if event.Succeeded {
		if attempt.Direction == domain.AttemptInbound {
			title = "Deposit received"
			body = fmt.Sprintf("%s %s has been credited to your wallet", attempt.Amount, attempt.Currency)
		} else {
			title = "Payment confirmed"
			body = fmt.Sprintf("Reference %s completed successfully", attempt.TxRef)
		}
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.notifier.Notify(nctx, attempt.OwnerID, title, body); err != nil {
			s.log.Warn().Err(err).Str("tx_ref", attempt.TxRef).Msg("reconciliation notification failed")
		}
	}()
}
