package service

import (
	"context"
	"errors"
	"testing"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"
	"quantumpay-core/internal/core/ports/mocks"
	"quantumpay-core/internal/provider"
	"quantumpay-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stubRouter scripts the routing outcome for service tests.
type stubRouter struct {
	result     *ports.ProviderResult
	err        error
	validation *ports.CustomerValidation
	adapters   []ports.ProviderAdapter
	gotAfford  provider.AffordabilityCheck
	gotReq     ports.ProviderExecuteRequest
}

func (r *stubRouter) Execute(_ context.Context, req ports.ProviderExecuteRequest, afford provider.AffordabilityCheck) (*ports.ProviderResult, error) {
	r.gotReq = req
	r.gotAfford = afford
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *stubRouter) Validate(context.Context, domain.Capability, string, string) (*ports.CustomerValidation, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.validation, nil
}

func (r *stubRouter) Candidates(domain.Capability) []ports.ProviderAdapter {
	return r.adapters
}

// catalogAdapter only serves Items; routing never reaches it in tests.
type catalogAdapter struct {
	ports.ProviderAdapter
	name  string
	items []ports.BillItem
}

func (a *catalogAdapter) Name() string { return a.name }

func (a *catalogAdapter) Items(country string) []ports.BillItem {
	var out []ports.BillItem
	for _, it := range a.items {
		if it.Country == country {
			out = append(out, it)
		}
	}
	return out
}

type billpayTestDeps struct {
	svc         *BillPaymentServiceImpl
	walletRepo  *mocks.MockWalletRepository
	txRepo      *mocks.MockTransactionRepository
	attemptRepo *mocks.MockAttemptRepository
	transactor  *mocks.MockDBTransactor
	router      *stubRouter
	ctrl        *gomock.Controller
}

func setupBillPaymentService(t *testing.T) *billpayTestDeps {
	ctrl := gomock.NewController(t)
	d := &billpayTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		attemptRepo: mocks.NewMockAttemptRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		router:      &stubRouter{},
		ctrl:        ctrl,
	}
	d.svc = NewBillPaymentService(
		d.walletRepo, d.txRepo, d.attemptRepo, d.transactor, d.router,
		nil, zerolog.Nop(),
	)
	return d
}

func TestBillPaymentService_PayBill_Success(t *testing.T) {
	d := setupBillPaymentService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}
	owner := uuid.New()

	wallet := walletFor(owner, "1000")
	d.router.result = &ports.ProviderResult{
		Provider:    "flutterwave",
		ProviderRef: "FLW-REF-1",
		Fee:         decimal.NewFromInt(100),
	}

	d.walletRepo.EXPECT().GetByOwner(ctx, owner, "NGN").Return(wallet, nil)
	d.attemptRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.PaymentAttempt) error {
			assert.Equal(t, domain.AttemptOutbound, a.Direction)
			assert.Equal(t, domain.AttemptStatusInitiated, a.Status)
			return nil
		})
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimal.RequireFromString("400")).Return(nil)
	// The debit marker lands in the same unit as the debit itself.
	d.attemptRepo.EXPECT().MarkDebited(ctx, tx, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypePayment, txn.Type)
			assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
			assert.Equal(t, "flutterwave", txn.MetaValue("provider"))
			assert.Equal(t, "100", txn.MetaValue("fee"))
			return nil
		})
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, gomock.Any(), domain.AttemptStatusSuccessful, gomock.Any()).Return(nil)

	txn, err := d.svc.PayBill(ctx, ports.BillPaymentRequest{
		OwnerID:     owner,
		ItemCode:    "DSTV-NG",
		CustomerRef: "1234567890",
		Amount:      decimal.NewFromInt(500),
		Currency:    "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, decimal.RequireFromString("600").String(), txn.Amount.String())

	// The affordability closure handed to the router re-checks against
	// the wallet balance including the candidate's fee.
	require.NotNil(t, d.router.gotAfford)
	assert.True(t, d.router.gotAfford(decimal.NewFromInt(500)))
	assert.False(t, d.router.gotAfford(decimal.NewFromInt(501)))
	assert.Equal(t, domain.CapabilityBillPayment, d.router.gotReq.Capability)
	assert.NotEmpty(t, d.router.gotReq.IdempotencyKey)
}

func TestBillPaymentService_PayBill_InsufficientBeforeRouting(t *testing.T) {
	d := setupBillPaymentService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	owner := uuid.New()

	d.walletRepo.EXPECT().GetByOwner(ctx, owner, "NGN").Return(walletFor(owner, "10"), nil)

	_, err := d.svc.PayBill(ctx, ports.BillPaymentRequest{
		OwnerID:     owner,
		ItemCode:    "DSTV-NG",
		CustomerRef: "1234567890",
		Amount:      decimal.NewFromInt(500),
		Currency:    "NGN",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAY_001", appErr.Code)
}

func TestBillPaymentService_PayBill_AllRailsDown(t *testing.T) {
	d := setupBillPaymentService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}
	owner := uuid.New()

	d.router.err = apperror.ErrProviderUnavailable(errors.New("flutterwave: timeout"))

	d.walletRepo.EXPECT().GetByOwner(ctx, owner, "NGN").Return(walletFor(owner, "1000"), nil)
	d.attemptRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.attemptRepo.EXPECT().UpdateStatus(ctx, tx, gomock.Any(), domain.AttemptStatusFailed, nil).Return(nil)

	_, err := d.svc.PayBill(ctx, ports.BillPaymentRequest{
		OwnerID:     owner,
		ItemCode:    "DSTV-NG",
		CustomerRef: "1234567890",
		Amount:      decimal.NewFromInt(500),
		Currency:    "NGN",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PRV_001", appErr.Code)
}

func TestBillPaymentService_ValidateCustomer(t *testing.T) {
	d := setupBillPaymentService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.router.validation = &ports.CustomerValidation{Valid: true, CustomerName: "ADA OBI", Provider: "paystack"}

	v, err := d.svc.ValidateCustomer(ctx, ports.BillValidationRequest{
		OwnerID:     uuid.New(),
		ItemCode:    "DSTV-NG",
		CustomerRef: "1234567890",
	})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "paystack", v.Provider)

	_, err = d.svc.ValidateCustomer(ctx, ports.BillValidationRequest{OwnerID: uuid.New()})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}

func TestBillPaymentService_ListItems_DeduplicatesAcrossAdapters(t *testing.T) {
	d := setupBillPaymentService(t)
	defer d.ctrl.Finish()

	d.router.adapters = []ports.ProviderAdapter{
		&catalogAdapter{name: "flutterwave", items: []ports.BillItem{
			{Code: "DSTV-NG", Name: "DSTV", Category: "cable_tv", Country: "NG"},
			{Code: "MTN-AIRTIME", Name: "MTN Airtime", Category: "airtime", Country: "NG"},
		}},
		&catalogAdapter{name: "paystack", items: []ports.BillItem{
			{Code: "DSTV-NG", Name: "DSTV Subscription", Category: "cable_tv", Country: "NG"},
			{Code: "AIRTEL-AIRTIME", Name: "Airtel Airtime", Category: "airtime", Country: "NG"},
		}},
	}

	items, err := d.svc.ListItems(context.Background(), "NG")
	require.NoError(t, err)
	require.Len(t, items, 3)
	// Sorted by code, first carrier's naming wins for shared codes.
	assert.Equal(t, "AIRTEL-AIRTIME", items[0].Code)
	assert.Equal(t, "DSTV-NG", items[1].Code)
	assert.Equal(t, "DSTV", items[1].Name)
	assert.Equal(t, "MTN-AIRTIME", items[2].Code)
}
