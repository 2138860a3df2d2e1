package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/internal/provider"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProviderRouter is the slice of the router the services depend on.
type ProviderRouter interface {
	Execute(ctx context.Context, req ports.ProviderExecuteRequest, afford provider.AffordabilityCheck) (*ports.ProviderResult, error)
	Validate(ctx context.Context, capability domain.Capability, itemCode, customerRef string) (*ports.CustomerValidation, error)
	Candidates(capability domain.Capability) []ports.ProviderAdapter
}

// BillPaymentServiceImpl implements ports.BillPaymentService: routed bill
// payments with per-adapter fee resolution and atomic ledger commit.
type BillPaymentServiceImpl struct {
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	attemptRepo ports.AttemptRepository
	transactor  ports.DBTransactor
	router      ProviderRouter
	notifier    ports.Notifier
	log         zerolog.Logger
}

// NewBillPaymentService creates a new BillPaymentServiceImpl.
func NewBillPaymentService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	attemptRepo ports.AttemptRepository,
	transactor ports.DBTransactor,
	router ProviderRouter,
	notifier ports.Notifier,
	log zerolog.Logger,
) *BillPaymentServiceImpl {
	return &BillPaymentServiceImpl{
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		attemptRepo: attemptRepo,
		transactor:  transactor,
		router:      router,
		notifier:    notifier,
		log:         log,
	}
}

// newTxRef mints a system-unique external reference. It is the
// idempotency anchor providers echo back in webhooks.
func newTxRef() string {
	return "QP-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:20]
}

// ValidateCustomer checks the customer reference with whichever carrier
// of the item is currently reachable.
func (s *BillPaymentServiceImpl) ValidateCustomer(ctx context.Context, req ports.BillValidationRequest) (*ports.CustomerValidation, error) {
	if req.ItemCode == "" || req.CustomerRef == "" {
		return nil, apperror.Validation("item_code and customer_ref are required")
	}
	return s.router.Validate(ctx, domain.CapabilityBillPayment, req.ItemCode, req.CustomerRef)
}

// ListItems returns the union of every adapter's catalog for a country,
// de-duplicated by item code in priority order.
func (s *BillPaymentServiceImpl) ListItems(_ context.Context, country string) ([]ports.BillItem, error) {
	seen := make(map[string]bool)
	var items []ports.BillItem
	for _, adapter := range s.router.Candidates(domain.CapabilityBillPayment) {
		for _, it := range adapter.Items(country) {
			if seen[it.Code] {
				continue
			}
			seen[it.Code] = true
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, nil
}

// PayBill routes a bill payment across the rails. Insufficient funds is
// checked before iterating candidates; the per-adapter fee re-check
// happens inside the router. On confirmed success the debit of
// amount+fee and the settled transaction record commit atomically.
func (s *BillPaymentServiceImpl) PayBill(ctx context.Context, req ports.BillPaymentRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.ItemCode == "" {
		return nil, apperror.Validation("item_code is required")
	}

	wallet, err := s.walletRepo.GetByOwner(ctx, req.OwnerID, req.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	// User-caused failure, checked before any provider is tried.
	if !wallet.CanCover(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	txRef := newTxRef()
	now := time.Now().UTC()
	attempt := &domain.PaymentAttempt{
		ID:        uuid.New(),
		TxRef:     txRef,
		OwnerID:   req.OwnerID,
		Provider:  "",
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    "bill_payment",
		Direction: domain.AttemptOutbound,
		Status:    domain.AttemptStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create attempt: %w", err))
	}

	balance := wallet.Balance
	result, err := s.router.Execute(ctx, ports.ProviderExecuteRequest{
		Capability:     domain.CapabilityBillPayment,
		ItemCode:       req.ItemCode,
		CustomerRef:    req.CustomerRef,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: txRef,
	}, func(fee decimal.Decimal) bool {
		return balance.GreaterThanOrEqual(req.Amount.Add(fee))
	})
	if err != nil {
		s.markAttemptFailed(ctx, attempt.ID)
		return nil, err
	}

	txn, err := s.commitBillPayment(ctx, req, wallet.ID, attempt.ID, txRef, result)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			if nerr := s.notifier.Notify(nctx, req.OwnerID, "Bill paid",
				fmt.Sprintf("Your %s payment of %s %s succeeded", req.ItemCode, req.Amount, req.Currency)); nerr != nil {
				s.log.Warn().Err(nerr).Str("tx_ref", txRef).Msg("bill payment notification failed")
			}
		}()
	}

	return txn, nil
}

// commitBillPayment is the atomic unit after a provider success: debit
// amount+fee under the wallet lock, record the settled transaction, mark
// the attempt successful. Partial application is not permitted.
func (s *BillPaymentServiceImpl) commitBillPayment(ctx context.Context, req ports.BillPaymentRequest, walletID, attemptID uuid.UUID, txRef string, result *ports.ProviderResult) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("lock wallet: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	total := req.Amount.Add(result.Fee)
	if !locked.CanCover(total) {
		// The balance moved between the routing pre-check and now. The
		// provider already executed; this is an operational conflict, not
		// a silent partial application.
		s.log.Error().
			Str("tx_ref", txRef).
			Str("provider", result.Provider).
			Msg("balance insufficient after provider success; manual reconciliation required")
		return nil, apperror.ErrLedgerError(fmt.Errorf("post-execution balance shortfall for %s", txRef))
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, locked.ID, locked.Balance.Sub(total)); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("debit wallet: %w", err))
	}
	// The debit flag travels in the same unit as the debit; reconciliation
	// compensates a failed outbound attempt only when it is set.
	if err := s.attemptRepo.MarkDebited(ctx, dbTx, attemptID); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("mark attempt debited: %w", err))
	}

	now := time.Now().UTC()
	owner := req.OwnerID
	txn := &domain.Transaction{
		ID:             uuid.New(),
		SenderOwnerID:  &owner,
		SenderWalletID: &locked.ID,
		Amount:         total,
		Currency:       req.Currency,
		Type:           domain.TransactionTypePayment,
		Status:         domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"provider":     result.Provider,
			"provider_ref": result.ProviderRef,
			"tx_ref":       txRef,
			"item_code":    req.ItemCode,
			"customer_ref": req.CustomerRef,
			"fee":          result.Fee.String(),
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("record payment: %w", err))
	}

	providerRef := result.ProviderRef
	if err := s.attemptRepo.UpdateStatus(ctx, dbTx, attemptID, domain.AttemptStatusSuccessful, &providerRef); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("mark attempt successful: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("tx_ref", txRef).
		Str("provider", result.Provider).
		Str("fee", result.Fee.String()).
		Str("total", total.String()).
		Msg("bill payment settled")

	return txn, nil
}

func (s *BillPaymentServiceImpl) markAttemptFailed(ctx context.Context, attemptID uuid.UUID) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to open tx for attempt failure")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.attemptRepo.UpdateStatus(ctx, dbTx, attemptID, domain.AttemptStatusFailed, nil); err != nil {
		s.log.Error().Err(err).Msg("failed to mark attempt failed")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to commit attempt failure")
	}
}
