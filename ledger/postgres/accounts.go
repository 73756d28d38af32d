package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/report"
)

const accountBalanceSQL = `
	SELECT te.currency, c.symbol, c.minor_units, SUM(te.amount)::bigint
	FROM transaction_entry te
	JOIN "transaction" t ON t.id = te.transaction_id
	JOIN account a ON a.id = te.account_id
	JOIN currency c ON c.code = te.currency
	WHERE t.user_id = $1
	  AND (a.name = $2 OR a.name LIKE $2 || ':%')
	GROUP BY te.currency, c.symbol, c.minor_units
	ORDER BY te.currency`

// Dates cast through timestamp so the window comparison stays on calendar
// time regardless of the session time zone.
const monthlyBalanceSQL = `
	SELECT DATE_TRUNC('month', t.date) AS month,
	       te.currency, c.symbol, c.minor_units, SUM(te.amount)::bigint
	FROM transaction_entry te
	JOIN "transaction" t ON t.id = te.transaction_id
	JOIN account a ON a.id = te.account_id
	JOIN currency c ON c.code = te.currency
	WHERE t.user_id = $1
	  AND (a.name = $2 OR a.name LIKE $2 || ':%')
	  AND t.date::timestamp >= $3
	GROUP BY month, te.currency, c.symbol, c.minor_units
	ORDER BY month, te.currency`

// The window sum runs over all history so each point carries everything
// before it; the outer filter only hides points before the window opens.
const periodicBalanceSQL = `
	SELECT currency, symbol, minor_units, instant, balance
	FROM (
		SELECT DISTINCT te.currency, c.symbol, c.minor_units,
		       DATE_TRUNC($3, t.date) AS instant,
		       (SUM(te.amount) OVER (
		           PARTITION BY te.currency
		           ORDER BY DATE_TRUNC($3, t.date)
		       ))::bigint AS balance
		FROM transaction_entry te
		JOIN "transaction" t ON t.id = te.transaction_id
		JOIN account a ON a.id = te.account_id
		JOIN currency c ON c.code = te.currency
		WHERE t.user_id = $1
		  AND (a.name = $2 OR a.name LIKE $2 || ':%')
	) series
	WHERE instant >= $4
	ORDER BY currency, instant`

const searchAccountsSQL = `
	SELECT a.name
	FROM transaction_entry te
	JOIN "transaction" t ON t.id = te.transaction_id
	JOIN account a ON a.id = te.account_id
	WHERE t.user_id = $1
	  AND a.name ILIKE '%' || $2 || '%'
	GROUP BY a.name
	ORDER BY COUNT(te.id) DESC, a.name
	LIMIT 10`

const activeAccountsSQL = `
	SELECT DISTINCT a.name
	FROM transaction_entry te
	JOIN "transaction" t ON t.id = te.transaction_id
	JOIN account a ON a.id = te.account_id
	WHERE t.user_id = $1
	  AND t.date::timestamp >= $2
	ORDER BY a.name`

// AccountBalance returns the all-time balance of the account subtree per
// currency, ordered by code.
func (s *Store) AccountBalance(ctx context.Context, userID, account string) ([]currency.Amount, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, accountBalanceSQL, userID, account)
	if err != nil {
		return nil, fmt.Errorf("select account balance: %w", err)
	}

	defer rows.Close()

	amounts := []currency.Amount{}

	for rows.Next() {
		var (
			amount     currency.Amount
			minorUnits int16
		)

		err := rows.Scan(&amount.Currency.Code, &amount.Currency.Symbol, &minorUnits, &amount.Value)
		if err != nil {
			return nil, fmt.Errorf("scan account balance: %w", err)
		}

		amount.Currency.MinorUnits = uint8(minorUnits)
		amounts = append(amounts, amount)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account balance: %w", err)
	}

	return amounts, nil
}

// MonthlyBalance returns per-month sums per currency for transactions dated
// on or after since.
func (s *Store) MonthlyBalance(ctx context.Context, userID, account string, since time.Time) (map[time.Time][]currency.Amount, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, monthlyBalanceSQL, userID, account, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("select monthly balance: %w", err)
	}

	defer rows.Close()

	months := make(map[time.Time][]currency.Amount)

	for rows.Next() {
		var (
			month      time.Time
			amount     currency.Amount
			minorUnits int16
		)

		err := rows.Scan(&month, &amount.Currency.Code, &amount.Currency.Symbol, &minorUnits, &amount.Value)
		if err != nil {
			return nil, fmt.Errorf("scan monthly balance: %w", err)
		}

		amount.Currency.MinorUnits = uint8(minorUnits)

		month = report.Truncate(month, report.IntervalMonthly)
		months[month] = append(months[month], amount)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly balance: %w", err)
	}

	return months, nil
}

// PeriodicCumulativeBalance returns, per currency code, the running balance
// at each interval boundary on or after since. History before the window is
// included in the sums.
func (s *Store) PeriodicCumulativeBalance(ctx context.Context, userID, account string, interval report.Interval, since time.Time) (map[string]report.InstantBalances, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, periodicBalanceSQL, userID, account, interval.String(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("select periodic balance: %w", err)
	}

	defer rows.Close()

	series := make(map[string]report.InstantBalances)

	for rows.Next() {
		var (
			code       string
			symbol     string
			minorUnits int16
			instant    time.Time
			balance    int64
		)

		if err := rows.Scan(&code, &symbol, &minorUnits, &instant, &balance); err != nil {
			return nil, fmt.Errorf("scan periodic balance: %w", err)
		}

		balances, ok := series[code]
		if !ok {
			balances = report.InstantBalances{
				Currency: currency.Currency{Code: code, Symbol: symbol, MinorUnits: uint8(minorUnits)},
			}
		}

		balances.Balances = append(balances.Balances, report.InstantBalance{
			Instant: report.Truncate(instant, interval),
			Balance: balance,
		})

		series[code] = balances
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periodic balance: %w", err)
	}

	return series, nil
}

// Accounts returns up to ten account names matching search, most used
// first.
func (s *Store) Accounts(ctx context.Context, userID, search string) ([]string, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	return queryNames(ctx, db, searchAccountsSQL, userID, search)
}

// ActiveAccounts returns the distinct account names with entries dated on
// or after since, ordered by name.
func (s *Store) ActiveAccounts(ctx context.Context, userID string, since time.Time) ([]string, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	return queryNames(ctx, db, activeAccountsSQL, userID, since.UTC())
}

func queryNames(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select account names: %w", err)
	}

	defer rows.Close()

	names := []string{}

	for rows.Next() {
		var name string

		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan account name: %w", err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account names: %w", err)
	}

	return names, nil
}
