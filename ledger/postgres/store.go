package postgres

import (
	"context"
	"database/sql"

	"github.com/LerianStudio/lib-ledger/ledger/service"
)

// Store implements the service storage contracts on a Connection.
type Store struct {
	conn *Connection
}

var (
	_ service.CurrencyQueries  = (*Store)(nil)
	_ service.TransactionStore = (*Store)(nil)
	_ service.AccountQueries   = (*Store)(nil)
)

// NewStore wraps conn. The connection may be unconnected; the first call
// connects it.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// querier is the read surface shared by the resolver and open transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
