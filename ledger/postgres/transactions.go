package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"
)

const insertTransactionSQL = `
	INSERT INTO "transaction" (id, user_id, date, payee, notes)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING date, created_at, updated_at`

const updateTransactionSQL = `
	UPDATE "transaction"
	SET date = $3, payee = $4, notes = $5, updated_at = now()
	WHERE id = $1 AND user_id = $2
	RETURNING date, created_at, updated_at`

// Entries route through get_or_create_account so accounts materialize on
// first use.
const insertEntrySQL = `
	INSERT INTO transaction_entry (transaction_id, "order", account_id, currency, amount)
	VALUES ($1, $2, get_or_create_account($3, $4), $5, $6)`

const selectEntriesSQL = `
	SELECT a.name, c.code, c.symbol, c.minor_units, te.amount
	FROM transaction_entry te
	JOIN account a ON a.id = te.account_id
	JOIN currency c ON c.code = te.currency
	WHERE te.transaction_id = $1
	ORDER BY te."order"`

const selectPageEntriesSQL = `
	SELECT te.transaction_id, a.name, c.code, c.symbol, c.minor_units, te.amount
	FROM transaction_entry te
	JOIN account a ON a.id = te.account_id
	JOIN currency c ON c.code = te.currency
	WHERE te.transaction_id = ANY($1::uuid[])
	ORDER BY te.transaction_id, te."order"`

// Create inserts the transaction row and its entries in one database
// transaction and returns the stored result.
func (s *Store) Create(ctx context.Context, intent transaction.Intent) (transaction.Transaction, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return transaction.Transaction{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	row := transaction.Transaction{
		ID:     uuid.New(),
		UserID: intent.UserID,
		Payee:  intent.Payee,
		Notes:  intent.Notes,
	}

	err = tx.QueryRowContext(ctx, insertTransactionSQL,
		row.ID, intent.UserID, intent.Date.UTC(), intent.Payee, intent.Notes,
	).Scan(&row.Date, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	row.Entries, err = insertEntries(ctx, tx, row.ID, intent)
	if err != nil {
		return transaction.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	return normalize(row), nil
}

// Update swaps the row and its full entry set in one database transaction.
// A missing id/owner pair fails with transaction.ErrNotFound before any
// entry is touched.
func (s *Store) Update(ctx context.Context, id uuid.UUID, intent transaction.Intent) (transaction.Transaction, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return transaction.Transaction{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	row := transaction.Transaction{
		ID:     id,
		UserID: intent.UserID,
		Payee:  intent.Payee,
		Notes:  intent.Notes,
	}

	err = tx.QueryRowContext(ctx, updateTransactionSQL,
		id, intent.UserID, intent.Date.UTC(), intent.Payee, intent.Notes,
	).Scan(&row.Date, &row.CreatedAt, &row.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return transaction.Transaction{}, transaction.ErrNotFound
	case err != nil:
		return transaction.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_entry WHERE transaction_id = $1`, id); err != nil {
		return transaction.Transaction{}, fmt.Errorf("delete stale entries: %w", err)
	}

	row.Entries, err = insertEntries(ctx, tx, id, intent)
	if err != nil {
		return transaction.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return transaction.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	return normalize(row), nil
}

// Delete removes the row; entries cascade. Deleting an absent id succeeds.
func (s *Store) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM "transaction" WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	return nil
}

// Get returns the transaction with its entries in stored order, or nil when
// absent or owned by someone else.
func (s *Store) Get(ctx context.Context, userID string, id uuid.UUID) (*transaction.Transaction, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var row transaction.Transaction

	err = db.QueryRowContext(ctx, `
		SELECT id, user_id, date, payee, notes, created_at, updated_at
		FROM "transaction"
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&row.ID, &row.UserID, &row.Date, &row.Payee, &row.Notes, &row.CreatedAt, &row.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select transaction: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectEntriesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		row.Entries = append(row.Entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	row = normalize(row)

	return &row, nil
}

// List returns one page in canonical order. The optional account filter
// keeps transactions with at least one entry under the account subtree, and
// the optional cursor restricts to rows strictly after the last seen
// position.
func (s *Store) List(ctx context.Context, query transaction.Query) (transaction.Page, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return transaction.Page{}, err
	}

	conditions := []string{"t.user_id = $1"}
	args := []any{query.UserID}

	if query.Account != "" {
		args = append(args, query.Account)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1
			FROM transaction_entry te
			JOIN account a ON a.id = te.account_id
			WHERE te.transaction_id = t.id
			  AND (a.name = $%d OR a.name LIKE $%d || ':%%'))`, n, n))
	}

	if query.After != nil {
		args = append(args, query.After.Date, query.After.CreatedAt)
		d, c := len(args)-1, len(args)
		conditions = append(conditions,
			fmt.Sprintf("(t.date < $%d OR (t.date = $%d AND t.created_at < $%d))", d, d, c))
	}

	listSQL := fmt.Sprintf(`
		SELECT t.id, t.user_id, t.date, t.payee, t.notes, t.created_at, t.updated_at
		FROM "transaction" t
		WHERE %s
		ORDER BY t.date DESC, t.created_at DESC
		LIMIT %d`,
		strings.Join(conditions, " AND "), transaction.PageSize+1)

	rows, err := db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return transaction.Page{}, fmt.Errorf("select transactions: %w", err)
	}

	defer rows.Close()

	items := make([]transaction.Transaction, 0, transaction.PageSize)

	for rows.Next() {
		var row transaction.Transaction

		err := rows.Scan(&row.ID, &row.UserID, &row.Date, &row.Payee, &row.Notes, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return transaction.Page{}, fmt.Errorf("scan transaction: %w", err)
		}

		items = append(items, normalize(row))
	}

	if err := rows.Err(); err != nil {
		return transaction.Page{}, fmt.Errorf("iterate transactions: %w", err)
	}

	page := transaction.Page{}

	if len(items) > transaction.PageSize {
		items = items[:transaction.PageSize]
		next := transaction.NextCursor(items[len(items)-1])
		page.Next = &next
	}

	if err := s.attachEntries(ctx, db, items); err != nil {
		return transaction.Page{}, err
	}

	page.Items = items

	return page, nil
}

// attachEntries loads the entries for a whole page in one query and fills
// them back in stored order.
func (s *Store) attachEntries(ctx context.Context, db dbresolver.DB, items []transaction.Transaction) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	index := make(map[uuid.UUID]int, len(items))

	for i, item := range items {
		ids[i] = item.ID.String()
		index[item.ID] = i
	}

	rows, err := db.QueryContext(ctx, selectPageEntriesSQL, ids)
	if err != nil {
		return fmt.Errorf("select page entries: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var transactionID uuid.UUID

		entry, err := scanPageEntry(rows, &transactionID)
		if err != nil {
			return err
		}

		i, ok := index[transactionID]
		if !ok {
			continue
		}

		items[i].Entries = append(items[i].Entries, entry)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate page entries: %w", err)
	}

	return nil
}

// insertEntries resolves currencies and writes the entry rows, preserving
// input order. Unknown currency codes fail with currency.ErrNotFound.
func insertEntries(ctx context.Context, tx dbresolver.Tx, id uuid.UUID, intent transaction.Intent) ([]transaction.Entry, error) {
	codes := make([]string, 0, len(intent.Entries))
	seen := make(map[string]struct{}, len(intent.Entries))

	for _, entry := range intent.Entries {
		if _, ok := seen[entry.Currency]; ok {
			continue
		}

		seen[entry.Currency] = struct{}{}
		codes = append(codes, entry.Currency)
	}

	currencies, err := queryCurrencies(ctx, tx, codes)
	if err != nil {
		return nil, err
	}

	entries := make([]transaction.Entry, 0, len(intent.Entries))

	for i, entry := range intent.Entries {
		c, ok := currencies[entry.Currency]
		if !ok {
			return nil, fmt.Errorf("%w: %q", currency.ErrNotFound, entry.Currency)
		}

		_, err := tx.ExecContext(ctx, insertEntrySQL,
			id, i, intent.UserID, entry.Account, entry.Currency, entry.Value)
		if err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", i, err)
		}

		entries = append(entries, transaction.Entry{
			Account: entry.Account,
			Amount:  currency.NewAmount(c, entry.Value),
		})
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (transaction.Entry, error) {
	var (
		entry      transaction.Entry
		minorUnits int16
	)

	err := rows.Scan(&entry.Account,
		&entry.Amount.Currency.Code, &entry.Amount.Currency.Symbol, &minorUnits,
		&entry.Amount.Value)
	if err != nil {
		return transaction.Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	entry.Amount.Currency.MinorUnits = uint8(minorUnits)

	return entry, nil
}

func scanPageEntry(rows *sql.Rows, transactionID *uuid.UUID) (transaction.Entry, error) {
	var (
		entry      transaction.Entry
		minorUnits int16
	)

	err := rows.Scan(transactionID, &entry.Account,
		&entry.Amount.Currency.Code, &entry.Amount.Currency.Symbol, &minorUnits,
		&entry.Amount.Value)
	if err != nil {
		return transaction.Entry{}, fmt.Errorf("scan page entry: %w", err)
	}

	entry.Amount.Currency.MinorUnits = uint8(minorUnits)

	return entry, nil
}

// normalize pins scanned timestamps to UTC so values compare cleanly with
// cursor and report math.
func normalize(row transaction.Transaction) transaction.Transaction {
	row.Date = row.Date.UTC()
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()

	return row
}
