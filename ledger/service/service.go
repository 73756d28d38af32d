package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger"
	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/log"
	"github.com/LerianStudio/lib-ledger/ledger/report"
	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/google/uuid"
)

// reportWindowYears is the trailing window applied to monthly and periodic
// reports and to the active-accounts listing.
const reportWindowYears = 1

// Config carries the Ledger collaborators. Currencies, Transactions and
// Accounts are required; Clock and Logger default to SystemClock and a
// NopLogger.
type Config struct {
	Currencies   CurrencyQueries
	Transactions TransactionStore
	Accounts     AccountQueries
	Clock        Clock
	Logger       log.Logger
}

// Ledger is the engine façade. It is stateless between calls; all state
// lives behind the injected collaborators.
type Ledger struct {
	currencies   CurrencyQueries
	transactions TransactionStore
	accounts     AccountQueries
	clock        Clock
	logger       log.Logger
}

// New builds a Ledger from cfg.
func New(cfg Config) (*Ledger, error) {
	if cfg.Currencies == nil {
		return nil, errors.New("service: Currencies is required")
	}

	if cfg.Transactions == nil {
		return nil, errors.New("service: Transactions is required")
	}

	if cfg.Accounts == nil {
		return nil, errors.New("service: Accounts is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Ledger{
		currencies:   cfg.Currencies,
		transactions: cfg.Transactions,
		accounts:     cfg.Accounts,
		clock:        clock,
		logger:       logger,
	}, nil
}

//nolint:ireturn
func (l *Ledger) log(ctx context.Context) log.Logger {
	return ledger.LoggerFromContextOr(ctx, l.logger)
}

// ---------------------------------------------------------------------------
// Amounts
// ---------------------------------------------------------------------------

// ParseAmount resolves the currency code and parses user-facing decimal text
// into an Amount. Unknown codes fail with currency.ErrNotFound; malformed
// text fails with the currency parse errors.
func (l *Ledger) ParseAmount(ctx context.Context, code, text string) (currency.Amount, error) {
	found, err := l.currencies.ByCodes(ctx, []string{code})
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "currency lookup failed",
			log.String("currency", code), log.Err(err))

		return currency.Amount{}, fmt.Errorf("look up currency: %w", err)
	}

	c, ok := found[code]
	if !ok {
		return currency.Amount{}, fmt.Errorf("%w: %q", currency.ErrNotFound, code)
	}

	return currency.ParseAmount(c, text)
}

// FormatAmount renders an amount as decimal text.
func (l *Ledger) FormatAmount(amount currency.Amount) string {
	return amount.String()
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// BuildTransaction validates and balances raw input without persisting it.
func (l *Ledger) BuildTransaction(userID string, input transaction.Input) (transaction.Intent, error) {
	return transaction.Build(userID, input)
}

// CreateTransaction builds and atomically persists a transaction, returning
// it as stored.
func (l *Ledger) CreateTransaction(ctx context.Context, userID string, input transaction.Input) (transaction.Transaction, error) {
	intent, err := transaction.Build(userID, input)
	if err != nil {
		return transaction.Transaction{}, err
	}

	created, err := l.transactions.Create(ctx, intent)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "transaction create failed",
			log.String("user_id", userID), log.Err(err))

		return transaction.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	l.log(ctx).Log(ctx, log.LevelInfo, "transaction created",
		log.String("user_id", userID), log.String("transaction_id", created.ID.String()))

	return created, nil
}

// UpdateTransaction builds the replacement and atomically swaps the stored
// row and entry set. A missing id/owner pair fails with
// transaction.ErrNotFound and commits nothing.
func (l *Ledger) UpdateTransaction(ctx context.Context, userID string, id uuid.UUID, input transaction.Input) (transaction.Transaction, error) {
	intent, err := transaction.Build(userID, input)
	if err != nil {
		return transaction.Transaction{}, err
	}

	updated, err := l.transactions.Update(ctx, id, intent)
	if err != nil {
		if !errors.Is(err, transaction.ErrNotFound) {
			l.log(ctx).Log(ctx, log.LevelError, "transaction update failed",
				log.String("user_id", userID),
				log.String("transaction_id", id.String()),
				log.Err(err))

			return transaction.Transaction{}, fmt.Errorf("update transaction: %w", err)
		}

		return transaction.Transaction{}, err
	}

	l.log(ctx).Log(ctx, log.LevelInfo, "transaction updated",
		log.String("user_id", userID), log.String("transaction_id", id.String()))

	return updated, nil
}

// DeleteTransaction removes a transaction. Deleting an absent or
// already-deleted id succeeds.
func (l *Ledger) DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error {
	if err := l.transactions.Delete(ctx, userID, id); err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "transaction delete failed",
			log.String("user_id", userID),
			log.String("transaction_id", id.String()),
			log.Err(err))

		return fmt.Errorf("delete transaction: %w", err)
	}

	return nil
}

// GetTransaction returns the transaction, or nil when it does not exist for
// this owner.
func (l *Ledger) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (*transaction.Transaction, error) {
	found, err := l.transactions.Get(ctx, userID, id)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "transaction get failed",
			log.String("user_id", userID),
			log.String("transaction_id", id.String()),
			log.Err(err))

		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return found, nil
}

// ListTransactions returns one page of the user's transactions in canonical
// order.
func (l *Ledger) ListTransactions(ctx context.Context, query transaction.Query) (transaction.Page, error) {
	page, err := l.transactions.List(ctx, query)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "transaction list failed",
			log.String("user_id", query.UserID), log.Err(err))

		return transaction.Page{}, fmt.Errorf("list transactions: %w", err)
	}

	return page, nil
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// AccountBalance returns the account's all-time balance per currency.
func (l *Ledger) AccountBalance(ctx context.Context, userID, account string) ([]currency.Amount, error) {
	balances, err := l.accounts.AccountBalance(ctx, userID, account)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "account balance failed",
			log.String("user_id", userID), log.String("account", account), log.Err(err))

		return nil, fmt.Errorf("account balance: %w", err)
	}

	return balances, nil
}

// MonthlyBalance returns per-month sums per currency over the trailing year.
func (l *Ledger) MonthlyBalance(ctx context.Context, userID, account string) (map[time.Time][]currency.Amount, error) {
	since := report.Truncate(l.clock.Now(), report.IntervalMonthly).AddDate(-reportWindowYears, 0, 0)

	balances, err := l.accounts.MonthlyBalance(ctx, userID, account, since)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "monthly balance failed",
			log.String("user_id", userID), log.String("account", account), log.Err(err))

		return nil, fmt.Errorf("monthly balance: %w", err)
	}

	return balances, nil
}

// PeriodicBalance returns, per currency, the running cumulative balance at
// each interval boundary over the trailing year. Points carry forward all
// history: the first point inside the window includes everything before it.
func (l *Ledger) PeriodicBalance(ctx context.Context, userID, account string, interval report.Interval) (map[string]report.InstantBalances, error) {
	if _, err := report.ParseInterval(interval.String()); err != nil {
		return nil, err
	}

	since := report.Truncate(l.clock.Now(), interval).AddDate(-reportWindowYears, 0, 0)

	series, err := l.accounts.PeriodicCumulativeBalance(ctx, userID, account, interval, since)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "periodic balance failed",
			log.String("user_id", userID),
			log.String("account", account),
			log.String("interval", interval.String()),
			log.Err(err))

		return nil, fmt.Errorf("periodic balance: %w", err)
	}

	return series, nil
}

// Accounts returns up to ten of the user's account names matching search,
// most used first.
func (l *Ledger) Accounts(ctx context.Context, userID, search string) ([]string, error) {
	accounts, err := l.accounts.Accounts(ctx, userID, search)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "account search failed",
			log.String("user_id", userID), log.Err(err))

		return nil, fmt.Errorf("search accounts: %w", err)
	}

	return accounts, nil
}

// ActiveAccounts returns the account names used within the trailing year.
func (l *Ledger) ActiveAccounts(ctx context.Context, userID string) ([]string, error) {
	since := l.clock.Now().AddDate(-reportWindowYears, 0, 0)

	accounts, err := l.accounts.ActiveAccounts(ctx, userID, since)
	if err != nil {
		l.log(ctx).Log(ctx, log.LevelError, "active accounts failed",
			log.String("user_id", userID), log.Err(err))

		return nil, fmt.Errorf("active accounts: %w", err)
	}

	return accounts, nil
}
