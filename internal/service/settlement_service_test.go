package service

import (
	"context"
	"testing"

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

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type settlementTestDeps struct {
	svc        *SettlementServiceImpl
	txRepo     *mocks.MockTransactionRepository
	walletRepo *mocks.MockWalletRepository
	ledger     *mocks.MockLedgerService
	riskEngine *mocks.MockRiskEngine
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		ledger:     mocks.NewMockLedgerService(ctrl),
		riskEngine: mocks.NewMockRiskEngine(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	// Side effects are nil so settlements finish synchronously in tests.
	d.svc = NewSettlementService(
		d.txRepo, d.walletRepo, d.ledger, d.riskEngine, d.transactor,
		nil, nil, zerolog.Nop(),
	)
	return d
}

func pendingTx(senderID, receiverID uuid.UUID, amount string) *domain.Transaction {
	sender, receiver := senderID, receiverID
	return &domain.Transaction{
		ID:              uuid.New(),
		SenderOwnerID:   &sender,
		ReceiverOwnerID: &receiver,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		Type:            domain.TransactionTypeTransfer,
		Status:          domain.TransactionStatusPending,
	}
}

func walletFor(ownerID uuid.UUID, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Currency: "USD",
		Class:    domain.CurrencyClassFiat,
		Balance:  decimal.RequireFromString(balance),
	}
}

// expectWalletLocks wires GetByIDForUpdate for both wallets regardless of
// lock ordering, which depends on the random wallet ids.
func expectWalletLocks(d *settlementTestDeps, tx pgx.Tx, a, b *domain.Wallet) {
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
			switch id {
			case a.ID:
				return a, nil
			case b.ID:
				return b, nil
			}
			return nil, nil
		}).Times(2)
}

func TestSettlementService_CreateTransfer_RejectsBadInput(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	owner := uuid.New()

	_, err := d.svc.CreateTransfer(ctx, ports.TransferRequest{
		SenderOwnerID:   owner,
		ReceiverOwnerID: uuid.New(),
		Amount:          decimal.Zero,
		Currency:        "USD",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_003", appErr.Code)

	_, err = d.svc.CreateTransfer(ctx, ports.TransferRequest{
		SenderOwnerID:   owner,
		ReceiverOwnerID: owner,
		Amount:          decimal.NewFromInt(10),
		Currency:        "USD",
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}

func TestSettlementService_CreateTransfer_RecordsPending(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionStatusPending, txn.Status)
			assert.Equal(t, domain.TransactionTypeTransfer, txn.Type)
			return nil
		})

	txn, err := d.svc.CreateTransfer(ctx, ports.TransferRequest{
		SenderOwnerID:   uuid.New(),
		ReceiverOwnerID: uuid.New(),
		Amount:          decimal.NewFromInt(25),
		Currency:        "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
}

func TestSettlementService_Settle_TerminalIsIdempotent(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	txn := pendingTx(uuid.New(), uuid.New(), "10")
	txn.Status = domain.TransactionStatusCompleted
	d.txRepo.EXPECT().GetByID(ctx, txn.ID).Return(txn, nil)

	got, err := d.svc.Settle(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn, got)
}

func TestSettlementService_Settle_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	txn := pendingTx(uuid.New(), uuid.New(), "40")
	senderWallet := walletFor(*txn.SenderOwnerID, "100")
	receiverWallet := walletFor(*txn.ReceiverOwnerID, "5")

	d.txRepo.EXPECT().GetByID(ctx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByOwner(ctx, *txn.SenderOwnerID, "USD").Return(senderWallet, nil)
	d.ledger.EXPECT().GetOrCreateWallet(ctx, *txn.ReceiverOwnerID, "USD").Return(receiverWallet, nil)
	d.riskEngine.EXPECT().Evaluate(ctx, txn).Return(domain.RiskAssessment{Score: 0.12}, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	expectWalletLocks(d, tx, senderWallet, receiverWallet)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, senderWallet.ID, decimal.RequireFromString("60")).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, receiverWallet.ID, decimal.RequireFromString("45")).Return(nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, txn.ID, gomock.Any(), nil, gomock.Any()).Return(nil)

	got, err := d.svc.Settle(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.RiskScore)
	assert.InDelta(t, 0.12, *got.RiskScore, 1e-9)
	assert.Equal(t, &senderWallet.ID, got.SenderWalletID)
	assert.Equal(t, &receiverWallet.ID, got.ReceiverWalletID)
}

func TestSettlementService_Settle_HighRiskBlocked(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	txn := pendingTx(uuid.New(), uuid.New(), "50000")
	senderWallet := walletFor(*txn.SenderOwnerID, "100000")

	d.txRepo.EXPECT().GetByID(ctx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByOwner(ctx, *txn.SenderOwnerID, "USD").Return(senderWallet, nil)
	d.ledger.EXPECT().GetOrCreateWallet(ctx, *txn.ReceiverOwnerID, "USD").Return(walletFor(*txn.ReceiverOwnerID, "0"), nil)
	d.riskEngine.EXPECT().Evaluate(ctx, txn).Return(domain.RiskAssessment{
		Score:    1.0,
		HighRisk: true,
		Reasons:  []string{domain.RiskReasonAmountExceedsMax},
	}, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().MarkFailed(ctx, tx, txn.ID, gomock.Any(), []string{domain.RiskReasonAmountExceedsMax}).Return(nil)

	got, err := d.svc.Settle(ctx, txn.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RISK_001", appErr.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
}

func TestSettlementService_Settle_InsufficientFunds(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	unitTx := &mockTx{}
	failTx := &mockTx{}

	txn := pendingTx(uuid.New(), uuid.New(), "500")
	senderWallet := walletFor(*txn.SenderOwnerID, "50")
	receiverWallet := walletFor(*txn.ReceiverOwnerID, "0")

	d.txRepo.EXPECT().GetByID(ctx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByOwner(ctx, *txn.SenderOwnerID, "USD").Return(senderWallet, nil)
	d.ledger.EXPECT().GetOrCreateWallet(ctx, *txn.ReceiverOwnerID, "USD").Return(receiverWallet, nil)
	d.riskEngine.EXPECT().Evaluate(ctx, txn).Return(domain.RiskAssessment{Score: 0.2}, nil)

	// The settlement unit rolls back, then a fresh short transaction
	// records the failure. No balance is ever written.
	d.transactor.EXPECT().Begin(ctx).Return(unitTx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, unitTx, txn.ID).Return(txn, nil)
	expectWalletLocks(d, unitTx, senderWallet, receiverWallet)
	d.transactor.EXPECT().Begin(ctx).Return(failTx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, failTx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().MarkFailed(ctx, failTx, txn.ID, gomock.Any(), []string{ReasonInsufficientFunds}).Return(nil)

	got, err := d.svc.Settle(ctx, txn.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_001", appErr.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
}

func TestSettlementService_Settle_MissingSenderWalletFails(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	txn := pendingTx(uuid.New(), uuid.New(), "10")

	d.txRepo.EXPECT().GetByID(ctx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByOwner(ctx, *txn.SenderOwnerID, "USD").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().MarkFailed(ctx, tx, txn.ID, nil, []string{domain.ReasonInvalidParty}).Return(nil)

	got, err := d.svc.Settle(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
	assert.Equal(t, []string{domain.ReasonInvalidParty}, got.RiskReasons)
}
