package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ReasonInsufficientFunds marks a settlement that failed the balance
// check inside the atomic unit.
const ReasonInsufficientFunds = "INSUFFICIENT_FUNDS"

const sideEffectTimeout = 10 * time.Second

// SettlementServiceImpl implements ports.SettlementService: the
// PENDING -> COMPLETED/FAILED state machine for internal transfers.
type SettlementServiceImpl struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	ledger     ports.LedgerService
	riskEngine ports.RiskEngine
	transactor ports.DBTransactor
	notifier   ports.Notifier
	dispatcher ports.WebhookDispatcher
	log        zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl. Notifier and
// dispatcher may be nil; side effects are then skipped.
func NewSettlementService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	riskEngine ports.RiskEngine,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	dispatcher ports.WebhookDispatcher,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		ledger:     ledger,
		riskEngine: riskEngine,
		transactor: transactor,
		notifier:   notifier,
		dispatcher: dispatcher,
		log:        log,
	}
}

// CreateTransfer records a PENDING transfer. No balance is touched and no
// risk is evaluated here; Settle does both.
func (s *SettlementServiceImpl) CreateTransfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Currency == "" {
		return nil, apperror.ErrUnknownCurrency(req.Currency)
	}
	if req.SenderOwnerID == req.ReceiverOwnerID {
		return nil, apperror.Validation("sender and receiver must differ")
	}

	txType := req.Type
	if txType == "" {
		txType = domain.TransactionTypeTransfer
	}

	sender := req.SenderOwnerID
	receiver := req.ReceiverOwnerID
	txn := &domain.Transaction{
		ID:              uuid.New(),
		SenderOwnerID:   &sender,
		ReceiverOwnerID: &receiver,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Type:            txType,
		Status:          domain.TransactionStatusPending,
		Metadata:        req.Metadata,
		CreatedAt:       time.Now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Msg("transfer created")

	return txn, nil
}

// Settle drives one pending transaction to a terminal state.
//
// Ordering is load -> resolve parties -> risk gate -> atomic ledger
// mutation -> detached side effects. Risk evaluation runs before any
// wallet lock is taken and the debit+credit pair commits as one unit.
func (s *SettlementServiceImpl) Settle(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	// Idempotency guard: terminal transactions are returned as-is.
	if txn.IsTerminal() {
		return txn, nil
	}

	// Resolve parties. The sender wallet must already exist; the receiver
	// wallet is created on first need.
	if txn.SenderOwnerID == nil || txn.ReceiverOwnerID == nil {
		return s.failPending(ctx, txn.ID, nil, []string{domain.ReasonInvalidParty})
	}
	senderWallet, err := s.walletRepo.GetByOwner(ctx, *txn.SenderOwnerID, txn.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve sender wallet: %w", err))
	}
	if senderWallet == nil {
		return s.failPending(ctx, txn.ID, nil, []string{domain.ReasonInvalidParty})
	}
	receiverWallet, err := s.ledger.GetOrCreateWallet(ctx, *txn.ReceiverOwnerID, txn.Currency)
	if err != nil {
		return nil, err
	}

	// Risk gate. Runs without holding any wallet lock; a high-risk
	// decision fails the transaction before any balance is touched.
	assessment, err := s.riskEngine.Evaluate(ctx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("risk evaluation: %w", err))
	}
	if assessment.HighRisk {
		s.log.Warn().
			Str("tx_id", txn.ID.String()).
			Float64("score", assessment.Score).
			Strs("reasons", assessment.Reasons).
			Msg("transaction blocked by risk gate")
		failed, ferr := s.failPending(ctx, txn.ID, &assessment.Score, assessment.Reasons)
		if ferr != nil {
			return nil, ferr
		}
		return failed, apperror.ErrHighRiskBlocked(assessment.Reasons)
	}

	settled, err := s.commitTransfer(ctx, txn, senderWallet.ID, receiverWallet.ID, assessment.Score)
	if err != nil {
		return settled, err
	}

	s.enqueueSideEffects(settled)
	return settled, nil
}

// commitTransfer performs the atomic unit: lock transaction row, lock
// both wallets in deterministic order, verify funds, debit, credit, mark
// COMPLETED. Any failure rolls the whole unit back.
func (s *SettlementServiceImpl) commitTransfer(ctx context.Context, txn *domain.Transaction, senderWalletID, receiverWalletID uuid.UUID, score float64) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-check under the row lock: a concurrent Settle may have won.
	locked, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, txn.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if locked.IsTerminal() {
		return locked, nil
	}

	sender, receiver, err := lockWalletPair(ctx, dbTx, s.walletRepo, senderWalletID, receiverWalletID)
	if err != nil {
		return s.failAfterRollback(ctx, txn.ID, &score, []string{domain.ReasonLedgerError}, err)
	}

	if !sender.CanCover(txn.Amount) {
		dbTx.Rollback(ctx) //nolint:errcheck
		failed, ferr := s.failPending(ctx, txn.ID, &score, []string{ReasonInsufficientFunds})
		if ferr != nil {
			return nil, ferr
		}
		return failed, apperror.ErrInsufficientFunds()
	}

	completedAt := time.Now().UTC()
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, sender.ID, sender.Balance.Sub(txn.Amount)); err != nil {
		return s.failAfterRollback(ctx, txn.ID, &score, []string{domain.ReasonLedgerError}, err)
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, receiver.ID, receiver.Balance.Add(txn.Amount)); err != nil {
		return s.failAfterRollback(ctx, txn.ID, &score, []string{domain.ReasonLedgerError}, err)
	}
	if err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, &score, nil, completedAt); err != nil {
		return s.failAfterRollback(ctx, txn.ID, &score, []string{domain.ReasonLedgerError}, err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return s.failAfterRollback(ctx, txn.ID, &score, []string{domain.ReasonLedgerError}, err)
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.SenderWalletID = &sender.ID
	txn.ReceiverWalletID = &receiver.ID
	txn.RiskScore = &score
	txn.CompletedAt = &completedAt

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("amount", txn.Amount.String()).
		Str("currency", txn.Currency).
		Msg("transfer settled")

	return txn, nil
}

// lockWalletPair acquires both wallet row locks in ascending wallet-id
// order so concurrent multi-wallet operations on the same pair cannot
// deadlock. Wallets are returned in (debitID, creditID) order.
func lockWalletPair(ctx context.Context, dbTx pgx.Tx, repo ports.WalletRepository, debitID, creditID uuid.UUID) (debit, credit *domain.Wallet, err error) {
	first, second := debitID, creditID
	if bytes.Compare(creditID[:], debitID[:]) < 0 {
		first, second = creditID, debitID
	}

	a, err := repo.GetByIDForUpdate(ctx, dbTx, first)
	if err != nil {
		return nil, nil, fmt.Errorf("lock wallet %s: %w", first, err)
	}
	b, err := repo.GetByIDForUpdate(ctx, dbTx, second)
	if err != nil {
		return nil, nil, fmt.Errorf("lock wallet %s: %w", second, err)
	}
	if a == nil || b == nil {
		return nil, nil, fmt.Errorf("wallet pair incomplete: %s, %s", debitID, creditID)
	}

	if a.ID == debitID {
		return a, b, nil
	}
	return b, a, nil
}

// failPending marks a still-pending transaction FAILED under its row
// lock. Racing against another settle attempt is resolved by the lock:
// whoever sees a terminal row returns it untouched.
func (s *SettlementServiceImpl) failPending(ctx context.Context, id uuid.UUID, score *float64, reasons []string) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if locked.IsTerminal() {
		return locked, nil
	}

	if err := s.txRepo.MarkFailed(ctx, dbTx, id, score, reasons); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit: %w", err))
	}

	locked.Status = domain.TransactionStatusFailed
	locked.RiskScore = score
	locked.RiskReasons = reasons
	return locked, nil
}

// failAfterRollback abandons the settlement unit and records the failure.
// The transaction moves to FAILED, never stays PENDING, and no balance
// change survives.
func (s *SettlementServiceImpl) failAfterRollback(ctx context.Context, id uuid.UUID, score *float64, reasons []string, cause error) (*domain.Transaction, error) {
	s.log.Error().Err(cause).Str("tx_id", id.String()).Msg("settlement unit failed, rolling back")

	failed, ferr := s.failPending(ctx, id, score, reasons)
	if ferr != nil {
		return nil, ferr
	}
	return failed, apperror.ErrLedgerError(cause)
}

// enqueueSideEffects fires notifications and webhook delivery detached
// from the settlement path. Their failure is logged and otherwise
// invisible to the caller.
func (s *SettlementServiceImpl) enqueueSideEffects(txn *domain.Transaction) {
	if s.notifier == nil && s.dispatcher == nil {
		return
	}
	snapshot := *txn

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if s.notifier != nil {
			if snapshot.SenderOwnerID != nil {
				if err := s.notifier.Notify(ctx, *snapshot.SenderOwnerID, "Transfer sent",
					fmt.Sprintf("You sent %s %s", snapshot.Amount, snapshot.Currency)); err != nil {
					s.log.Warn().Err(err).Str("tx_id", snapshot.ID.String()).Msg("sender notification failed")
				}
			}
			if snapshot.ReceiverOwnerID != nil {
				if err := s.notifier.Notify(ctx, *snapshot.ReceiverOwnerID, "Transfer received",
					fmt.Sprintf("You received %s %s", snapshot.Amount, snapshot.Currency)); err != nil {
					s.log.Warn().Err(err).Str("tx_id", snapshot.ID.String()).Msg("receiver notification failed")
				}
			}
		}
		if s.dispatcher != nil && snapshot.SenderOwnerID != nil {
			if err := s.dispatcher.Deliver(ctx, *snapshot.SenderOwnerID, "TRANSFER_COMPLETED", &snapshot); err != nil {
				s.log.Warn().Err(err).Str("tx_id", snapshot.ID.String()).Msg("webhook dispatch failed")
			}
		}
	}()
}
