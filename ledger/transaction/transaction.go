package transaction

import (
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/google/uuid"
)

// Transaction is a persisted ledger transaction. For every currency among
// its entries, the entry values sum to zero.
type Transaction struct {
	ID     uuid.UUID
	UserID string
	Date   time.Time
	Payee  string
	Notes  string

	// Entries keeps the caller-supplied order; slice position is the
	// persisted order.
	Entries []Entry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one leg of a transaction.
type Entry struct {
	// Account is a colon-delimited hierarchical name, e.g. "Expenses:Gas".
	Account string
	Amount  currency.Amount
}

// Intent is a validated, balanced transaction that has not been persisted.
// Stores consume an Intent and return the stored Transaction.
type Intent struct {
	UserID  string
	Date    time.Time
	Payee   string
	Notes   string
	Entries []IntentEntry
}

// IntentEntry carries an entry by currency code; stores resolve the code
// against the currency catalog when the intent is written.
type IntentEntry struct {
	Account  string
	Currency string
	Value    int64
}
