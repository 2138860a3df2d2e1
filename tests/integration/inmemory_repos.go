package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- Serializing Transactor ---

// inMemoryTransactor hands out transactions that hold one global mutex,
// so everything inside a Begin/Commit pair runs serialized. That gives
// the in-memory stack the same effective isolation the real stack gets
// from SELECT ... FOR UPDATE, which keeps the concurrency tests exact.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	tx := &memTx{}
	tx.release = func() { t.mu.Unlock() }
	return tx, nil
}

// memTx is a pgx.Tx whose Commit/Rollback release the transactor mutex
// exactly once. The deferred Rollback after a Commit is a no-op.
type memTx struct {
	once    sync.Once
	release func()
}

func (t *memTx) done() {
	t.once.Do(t.release)
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// First insert wins per (owner, currency), like ON CONFLICT DO NOTHING.
	for _, existing := range r.wallets {
		if existing.OwnerID == w.OwnerID && existing.Currency == w.Currency {
			return nil
		}
	}
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID && w.Currency == currency {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Wallet
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	return r.GetByOwner(ctx, ownerID, currency)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, score *float64, reasons []string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.Status = domain.TransactionStatusCompleted
	t.RiskScore = score
	t.RiskReasons = reasons
	t.CompletedAt = &completedAt
	return nil
}

func (r *inMemoryTransactionRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, score *float64, reasons []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.Status = domain.TransactionStatusFailed
	t.RiskScore = score
	t.RiskReasons = reasons
	return nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		sender := t.SenderOwnerID != nil && *t.SenderOwnerID == params.OwnerID
		receiver := t.ReceiverOwnerID != nil && *t.ReceiverOwnerID == params.OwnerID
		if !sender && !receiver {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && t.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Attempt Repo ---

type inMemoryAttemptRepo struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]*domain.PaymentAttempt
}

func newInMemoryAttemptRepo() *inMemoryAttemptRepo {
	return &inMemoryAttemptRepo{attempts: make(map[uuid.UUID]*domain.PaymentAttempt)}
}

func (r *inMemoryAttemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *inMemoryAttemptRepo) GetByTxRef(ctx context.Context, txRef string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attempts {
		if a.TxRef == txRef {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAttemptRepo) GetByTxRefForUpdate(ctx context.Context, tx pgx.Tx, txRef string) (*domain.PaymentAttempt, error) {
	return r.GetByTxRef(ctx, txRef)
}

func (r *inMemoryAttemptRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AttemptStatus, providerRef *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return fmt.Errorf("attempt not found")
	}
	a.Status = status
	if providerRef != nil {
		a.ProviderRef = providerRef
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryAttemptRepo) MarkDebited(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return fmt.Errorf("attempt not found")
	}
	a.Debited = true
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Stub Sender History ---

// stubSenderHistory serves one fixed behavioral snapshot for every
// sender, so risk scores stay deterministic across runs.
type stubSenderHistory struct {
	snapshot domain.SenderSnapshot
}

func newStubSenderHistory() *stubSenderHistory {
	return &stubSenderHistory{snapshot: domain.SenderSnapshot{
		AvgSendAmount:     150,
		CompletedSends:    40,
		SendsLastHour:     1,
		PaidReceiverCount: 3,
		AccountAgeDays:    365,
		FailedRatio:       0.01,
		HourOfDay:         13,
	}}
}

func (s *stubSenderHistory) SenderSnapshot(ctx context.Context, senderID uuid.UUID, receiverID *uuid.UUID, at time.Time) (*domain.SenderSnapshot, error) {
	snap := s.snapshot
	return &snap, nil
}

// --- Stub Provider Rail ---

// stubRail is an always-healthy provider adapter that acknowledges every
// execute call. Deposits come back pending with funding instructions,
// the way real rails answer virtual-account requests.
type stubRail struct {
	name string
	fee  decimal.Decimal
}

func newStubRail(name string) *stubRail {
	return &stubRail{name: name, fee: decimal.RequireFromString("10")}
}

func (a *stubRail) Name() string { return a.name }

func (a *stubRail) Capabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityBillPayment,
		domain.CapabilityDeposit,
		domain.CapabilityVirtualAccount,
	}
}

func (a *stubRail) Fee(itemCode string, amount decimal.Decimal) (decimal.Decimal, bool) {
	return a.fee, true
}

func (a *stubRail) Validate(ctx context.Context, itemCode, customerRef string) (*ports.CustomerValidation, error) {
	return &ports.CustomerValidation{
		Valid:        true,
		CustomerName: "Test Customer",
		Provider:     a.name,
	}, nil
}

func (a *stubRail) Execute(ctx context.Context, req ports.ProviderExecuteRequest) (*ports.ProviderResult, error) {
	result := &ports.ProviderResult{
		Provider:    a.name,
		ProviderRef: a.name + "-ref-" + req.IdempotencyKey,
		Fee:         a.fee,
	}
	if req.Capability == domain.CapabilityDeposit || req.Capability == domain.CapabilityVirtualAccount {
		result.Pending = true
		result.AccountDetail = map[string]string{
			"bank_name":      "Test Bank",
			"account_number": "0123456789",
		}
	}
	return result, nil
}

func (a *stubRail) CheckHealth(ctx context.Context) error { return nil }

func (a *stubRail) Items(country string) []ports.BillItem {
	return []ports.BillItem{{
		Code:     "AIRTIME_MTN",
		Name:     "MTN Airtime",
		Category: "airtime",
		Country:  country,
	}}
}
