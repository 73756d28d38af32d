package postgres

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
)

const selectCurrenciesSQL = `
	SELECT code, symbol, minor_units
	FROM currency
	WHERE code = ANY($1)`

// ByCodes returns the catalog currencies found for the given codes. Unknown
// codes are absent from the result.
func (s *Store) ByCodes(ctx context.Context, codes []string) (map[string]currency.Currency, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	return queryCurrencies(ctx, db, codes)
}

func queryCurrencies(ctx context.Context, q querier, codes []string) (map[string]currency.Currency, error) {
	rows, err := q.QueryContext(ctx, selectCurrenciesSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("select currencies: %w", err)
	}

	defer rows.Close()

	found := make(map[string]currency.Currency, len(codes))

	for rows.Next() {
		var (
			c          currency.Currency
			minorUnits int16
		)

		if err := rows.Scan(&c.Code, &c.Symbol, &minorUnits); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}

		c.MinorUnits = uint8(minorUnits)
		found[c.Code] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currencies: %w", err)
	}

	return found, nil
}
