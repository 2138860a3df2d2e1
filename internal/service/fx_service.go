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

// DefaultQuoteTTL is how long a priced quote stays executable.
const DefaultQuoteTTL = 60 * time.Second

// FXServiceImpl implements ports.FXService: short-lived priced quotes and
// their atomic execution against the ledger.
type FXServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	ledger     ports.LedgerService
	quotes     ports.QuoteCache
	feed       ports.RateFeed
	transactor ports.DBTransactor
	spread     decimal.Decimal // fraction taken by the house, e.g. 0.005
	quoteTTL   time.Duration
	log        zerolog.Logger
}

// NewFXService creates a new FXServiceImpl. spreadBps is the house spread
// in basis points.
func NewFXService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	ledger ports.LedgerService,
	quotes ports.QuoteCache,
	feed ports.RateFeed,
	transactor ports.DBTransactor,
	spreadBps int64,
	quoteTTL time.Duration,
	log zerolog.Logger,
) *FXServiceImpl {
	if quoteTTL <= 0 {
		quoteTTL = DefaultQuoteTTL
	}
	return &FXServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		ledger:     ledger,
		quotes:     quotes,
		feed:       feed,
		transactor: transactor,
		spread:     decimal.New(spreadBps, -4),
		quoteTTL:   quoteTTL,
		log:        log,
	}
}

// scaleFor returns the rounding scale for a currency's amounts.
func scaleFor(currency string) int32 {
	if domain.ClassForCurrency(currency) == domain.CurrencyClassCrypto {
		return 8
	}
	return 2
}

// GetQuote prices a conversion and stores it for single use. It has no
// side effects on any wallet.
func (s *FXServiceImpl) GetQuote(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Quote, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if from == to {
		return nil, apperror.Validation("from and to currencies must differ")
	}

	base, err := s.feed.BaseRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	// The spread is applied against the client: the quoted rate is
	// slightly below the base rate, the difference is the house take.
	rate := base.Mul(decimal.NewFromInt(1).Sub(s.spread))
	converted := amount.Mul(rate).RoundDown(scaleFor(to))

	quote := &domain.Quote{
		ID:              uuid.New().String(),
		FromCurrency:    from,
		ToCurrency:      to,
		Amount:          amount.Round(scaleFor(from)),
		Rate:            rate,
		ConvertedAmount: converted,
		ExpiresAt:       time.Now().UTC().Add(s.quoteTTL),
	}

	if err := s.quotes.Put(ctx, quote, s.quoteTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store quote: %w", err))
	}

	s.log.Debug().
		Str("quote_id", quote.ID).
		Str("pair", from+"/"+to).
		Str("rate", rate.String()).
		Msg("quote issued")

	return quote, nil
}

// requeue restores a consumed-but-unexecuted quote under its remaining
// TTL. Best effort; a lost quote costs the client a re-quote, not money.
func (s *FXServiceImpl) requeue(ctx context.Context, quote *domain.Quote) {
	remaining := time.Until(quote.ExpiresAt)
	if remaining <= 0 {
		return
	}
	if err := s.quotes.Put(ctx, quote, remaining); err != nil {
		s.log.Warn().Err(err).Str("quote_id", quote.ID).Msg("failed to restore rejected quote")
	}
}

// ExecuteQuote consumes a quote exactly once and applies the conversion
// as one atomic debit/credit pair. A second execution of the same quote
// id fails with FX_001.
func (s *FXServiceImpl) ExecuteQuote(ctx context.Context, quoteID string, ownerID uuid.UUID) (*domain.Transaction, error) {
	quote, err := s.quotes.Consume(ctx, quoteID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consume quote: %w", err))
	}
	if quote == nil {
		return nil, apperror.ErrQuoteNotFound()
	}
	// Expiry is wall-clock at execution; the cache TTL is only a floor.
	if quote.Expired(time.Now().UTC()) {
		return nil, apperror.ErrQuoteNotFound()
	}

	source, err := s.walletRepo.GetByOwner(ctx, ownerID, quote.FromCurrency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve source wallet: %w", err))
	}
	if source == nil {
		s.requeue(ctx, quote)
		return nil, apperror.ErrNotFound("source wallet")
	}
	dest, err := s.ledger.GetOrCreateWallet(ctx, ownerID, quote.ToCurrency)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	lockedSource, lockedDest, err := lockWalletPair(ctx, dbTx, s.walletRepo, source.ID, dest.ID)
	if err != nil {
		return nil, apperror.ErrLedgerError(err)
	}
	if !lockedSource.CanCover(quote.Amount) {
		// Client-correctable rejection: the quote was consumed but not
		// executed, so it goes back in the cache for its remaining life.
		// Topping up and retrying inside the TTL must succeed.
		s.requeue(ctx, quote)
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedSource.ID, lockedSource.Balance.Sub(quote.Amount)); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("debit source: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedDest.ID, lockedDest.Balance.Add(quote.ConvertedAmount)); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("credit destination: %w", err))
	}

	now := time.Now().UTC()
	owner := ownerID
	txn := &domain.Transaction{
		ID:               uuid.New(),
		SenderOwnerID:    &owner,
		ReceiverOwnerID:  &owner,
		SenderWalletID:   &lockedSource.ID,
		ReceiverWalletID: &lockedDest.ID,
		Amount:           quote.Amount,
		Currency:         quote.FromCurrency,
		Type:             domain.TransactionTypeExchange,
		Status:           domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"quote_id":         quote.ID,
			"rate":             quote.Rate.String(),
			"to_currency":      quote.ToCurrency,
			"converted_amount": quote.ConvertedAmount.String(),
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("record exchange: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrLedgerError(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("pair", quote.FromCurrency+"/"+quote.ToCurrency).
		Str("amount", quote.Amount.String()).
		Str("converted", quote.ConvertedAmount.String()).
		Msg("exchange executed")

	return txn, nil
}
