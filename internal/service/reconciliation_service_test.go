package service

import (
	"context"
	"testing"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/internal/core/ports/mocks"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconTestDeps struct {
	svc         *ReconciliationServiceImpl
	walletRepo  *mocks.MockWalletRepository
	txRepo      *mocks.MockTransactionRepository
	attemptRepo *mocks.MockAttemptRepository
	transactor  *mocks.MockDBTransactor
	idemCache   *mocks.MockIdempotencyCache
	ctrl        *gomock.Controller
}

func setupReconciliationService(t *testing.T) *reconTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		attemptRepo: mocks.NewMockAttemptRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		idemCache:   mocks.NewMockIdempotencyCache(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewReconciliationService(
		d.walletRepo, d.txRepo, d.attemptRepo, d.transactor, d.idemCache,
		nil, zerolog.Nop(),
	)
	return d
}

func openAttempt(direction domain.AttemptDirection, amount string) *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		ID:        uuid.New(),
		TxRef:     newTxRef(),
		OwnerID:   uuid.New(),
		Amount:    decimal.RequireFromString(amount),
		Currency:  "NGN",
		Method:    "bank_transfer",
		Direction: direction,
		Status:    domain.AttemptStatusPendingApproval,
		CreatedAt: time.Now().UTC(),
	}
}

func TestReconciliationService_UnknownReferenceDropped(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, "QP-UNKNOWN").Return(nil, nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:  "flutterwave",
		TxRef:     "QP-UNKNOWN",
		Succeeded: true,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RCN_001", appErr.Code)
}

func TestReconciliationService_TerminalAttemptIsNoOp(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptInbound, "100")
	attempt.Status = domain.AttemptStatusSuccessful

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:  "flutterwave",
		TxRef:     attempt.TxRef,
		Succeeded: true,
	})
	require.NoError(t, err)
}

func TestReconciliationService_CacheReplaySkipsDatabase(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.idemCache.EXPECT().Get(ctx, "webhook:flutterwave:QP-SEEN").Return([]byte("1"), nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:  "flutterwave",
		TxRef:     "QP-SEEN",
		Succeeded: true,
	})
	require.NoError(t, err)
}

func TestReconciliationService_InboundSuccessCreditsWallet(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptInbound, "250")
	wallet := &domain.Wallet{
		ID:       uuid.New(),
		OwnerID:  attempt.OwnerID,
		Currency: "NGN",
		Class:    domain.CurrencyClassFiat,
		Balance:  decimal.NewFromInt(50),
	}

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	d.walletRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, attempt.OwnerID, "NGN").Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimal.RequireFromString("300")).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
			assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
			assert.Equal(t, attempt.TxRef, txn.MetaValue("tx_ref"))
			return nil
		})
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusSuccessful, gomock.Any()).Return(nil)
	d.idemCache.EXPECT().Set(ctx, gomock.Any(), []byte("1"), webhookDedupTTL).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:    "flutterwave",
		TxRef:       attempt.TxRef,
		ProviderRef: "FLW-REF-9",
		Succeeded:   true,
		Amount:      attempt.Amount,
		Currency:    "NGN",
	})
	require.NoError(t, err)
}

func TestReconciliationService_InboundFailureOnlyMarksAttempt(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptInbound, "250")

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusFailed, nil).Return(nil)
	d.idemCache.EXPECT().Set(ctx, gomock.Any(), []byte("1"), webhookDedupTTL).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:    "flutterwave",
		TxRef:       attempt.TxRef,
		Succeeded:   false,
		FailureNote: "payer abandoned",
	})
	require.NoError(t, err)
}

func TestReconciliationService_OutboundFailureCompensates(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptOutbound, "400")
	attempt.Debited = true
	wallet := &domain.Wallet{
		ID:       uuid.New(),
		OwnerID:  attempt.OwnerID,
		Currency: "NGN",
		Class:    domain.CurrencyClassFiat,
		Balance:  decimal.NewFromInt(100),
	}

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	d.walletRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, attempt.OwnerID, "NGN").Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimal.RequireFromString("500")).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeRefund, txn.Type)
			assert.Equal(t, "provider declined", txn.MetaValue("reason"))
			return nil
		})
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusFailed, nil).Return(nil)
	d.idemCache.EXPECT().Set(ctx, gomock.Any(), []byte("1"), webhookDedupTTL).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:    "paystack",
		TxRef:       attempt.TxRef,
		Succeeded:   false,
		FailureNote: "provider declined",
	})
	require.NoError(t, err)
}

// An outbound attempt whose debit never landed must not be refunded: a
// failure webhook racing the payment flow, or an attempt abandoned before
// its commit, carries no money to give back.
func TestReconciliationService_OutboundFailureWithoutDebitSkipsRefund(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptOutbound, "400")
	attempt.Status = domain.AttemptStatusInitiated
	// Debited stays false: the wallet was never charged.

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	// No wallet lock, no balance update, no refund record.
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusFailed, nil).Return(nil)
	d.idemCache.EXPECT().Set(ctx, gomock.Any(), []byte("1"), webhookDedupTTL).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:    "flutterwave",
		TxRef:       attempt.TxRef,
		Succeeded:   false,
		FailureNote: "insufficient provider float",
	})
	require.NoError(t, err)
}

func TestReconciliationService_InboundSuccessProvisionsWallet(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptInbound, "120")
	created := &domain.Wallet{
		ID:       uuid.New(),
		OwnerID:  attempt.OwnerID,
		Currency: "NGN",
		Class:    domain.CurrencyClassFiat,
		Balance:  decimal.Zero,
	}

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	// First sight of this currency for the owner: no wallet row yet.
	d.walletRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, attempt.OwnerID, "NGN").Return(nil, nil)
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, w *domain.Wallet) error {
			assert.Equal(t, attempt.OwnerID, w.OwnerID)
			assert.Equal(t, "NGN", w.Currency)
			assert.True(t, w.Balance.IsZero())
			return nil
		})
	d.walletRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, attempt.OwnerID, "NGN").Return(created, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, created.ID, decimal.RequireFromString("120")).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusSuccessful, gomock.Any()).Return(nil)
	d.idemCache.EXPECT().Set(ctx, gomock.Any(), []byte("1"), webhookDedupTTL).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:  "paystack",
		TxRef:     attempt.TxRef,
		Succeeded: true,
		Amount:    attempt.Amount,
		Currency:  "NGN",
	})
	require.NoError(t, err)
}

// A confirmation carrying different figures than the attempt recorded is
// held open for review instead of credited, and stays reachable for a
// corrected notification.
func TestReconciliationService_InboundAmountMismatchHeld(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	attempt := openAttempt(domain.AttemptInbound, "250")

	d.idemCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().GetByTxRefForUpdate(ctx, tx, attempt.TxRef).Return(attempt, nil)
	// Held, not credited: no wallet calls, no transaction record, and no
	// dedup cache entry so the corrected webhook is not dropped.
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, attempt.ID, domain.AttemptStatusPendingApproval, gomock.Any()).Return(nil)

	err := d.svc.HandleProviderWebhook(ctx, ports.ProviderEvent{
		Provider:    "flutterwave",
		TxRef:       attempt.TxRef,
		ProviderRef: "FLW-REF-77",
		Succeeded:   true,
		Amount:      decimal.RequireFromString("2500"),
		Currency:    "NGN",
	})
	require.NoError(t, err)
}
