package service

import (
	"context"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/report"
	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/google/uuid"
)

// CurrencyQueries resolves currency metadata from the catalog.
type CurrencyQueries interface {
	// ByCodes returns the currencies found for the given codes, keyed by
	// code. Unknown codes are simply absent from the result.
	ByCodes(ctx context.Context, codes []string) (map[string]currency.Currency, error)
}

// TransactionStore persists transactions. Each write is one atomic unit:
// the transaction row and its entry rows commit or roll back together, so a
// reader never observes partial entries.
type TransactionStore interface {
	// Create stores a new transaction and returns it as stored, including
	// the generated id and timestamps.
	Create(ctx context.Context, intent transaction.Intent) (transaction.Transaction, error)

	// Update replaces the row and its full entry set. A missing id/owner
	// pair fails with transaction.ErrNotFound and commits nothing.
	Update(ctx context.Context, id uuid.UUID, intent transaction.Intent) (transaction.Transaction, error)

	// Delete removes the transaction. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// Get returns the transaction, or nil when absent or owned by someone
	// else.
	Get(ctx context.Context, userID string, id uuid.UUID) (*transaction.Transaction, error)

	// List returns one page in canonical order (date descending, then
	// created_at descending) using keyset pagination.
	List(ctx context.Context, query transaction.Query) (transaction.Page, error)
}

// AccountQueries aggregates entry amounts per account. Account filters match
// hierarchically: the exact name or any colon-delimited descendant.
type AccountQueries interface {
	// AccountBalance returns the all-time balance per currency, ordered by
	// currency code.
	AccountBalance(ctx context.Context, userID, account string) ([]currency.Amount, error)

	// MonthlyBalance returns per-month delta sums per currency for months
	// with at least one entry on or after since.
	MonthlyBalance(ctx context.Context, userID, account string, since time.Time) (map[time.Time][]currency.Amount, error)

	// PeriodicCumulativeBalance returns, per currency code, the running
	// cumulative balance at each interval boundary on or after since.
	// Cumulative sums include history from before the window; since only
	// restricts which points appear.
	PeriodicCumulativeBalance(ctx context.Context, userID, account string, interval report.Interval, since time.Time) (map[string]report.InstantBalances, error)

	// Accounts returns up to ten account names matching search
	// case-insensitively, most used first.
	Accounts(ctx context.Context, userID, search string) ([]string, error)

	// ActiveAccounts returns the distinct account names with at least one
	// entry on or after since, ordered by name.
	ActiveAccounts(ctx context.Context, userID string, since time.Time) ([]string, error)
}

// Clock supplies the reference instant for report windows.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used when none is injected.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
