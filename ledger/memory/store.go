// Package memory provides an in-memory storage adapter for the ledger
// service contracts.
//
// The adapter exists for service-level tests and as the behavioral
// reference for real adapters: canonical listing order, keyset pagination,
// hierarchical account matching and report windows are observably identical
// to the postgres adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/report"
	"github.com/LerianStudio/lib-ledger/ledger/service"
	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/google/uuid"
)

// accountSearchLimit caps the popularity-ranked account listing.
const accountSearchLimit = 10

// Clock supplies timestamps for generated created_at/updated_at columns.
type Clock interface {
	Now() time.Time
}

// Config carries the Store inputs. Currencies seeds the catalog; Clock
// defaults to the wall clock.
type Config struct {
	Currencies []currency.Currency
	Clock      Clock
}

// Store is a mutex-guarded in-memory implementation of the service storage
// contracts.
type Store struct {
	mu         sync.RWMutex
	currencies map[string]currency.Currency
	rows       map[uuid.UUID]transaction.Transaction
	clock      Clock

	// lastStamp enforces strictly increasing created_at/updated_at values
	// so the canonical order never ties.
	lastStamp time.Time
}

var (
	_ service.CurrencyQueries  = (*Store)(nil)
	_ service.TransactionStore = (*Store)(nil)
	_ service.AccountQueries   = (*Store)(nil)
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New builds a Store seeded with cfg.Currencies.
func New(cfg Config) *Store {
	currencies := make(map[string]currency.Currency, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		currencies[c.Code] = c
	}

	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	return &Store{
		currencies: currencies,
		rows:       make(map[uuid.UUID]transaction.Transaction),
		clock:      clock,
	}
}

// ---------------------------------------------------------------------------
// CurrencyQueries
// ---------------------------------------------------------------------------

// ByCodes returns the catalog currencies found for the given codes.
func (s *Store) ByCodes(_ context.Context, codes []string) (map[string]currency.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]currency.Currency, len(codes))

	for _, code := range codes {
		if c, ok := s.currencies[code]; ok {
			found[code] = c
		}
	}

	return found, nil
}

// ---------------------------------------------------------------------------
// TransactionStore
// ---------------------------------------------------------------------------

// Create stores a new transaction and returns it as stored.
func (s *Store) Create(_ context.Context, intent transaction.Intent) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.resolveEntries(intent.Entries)
	if err != nil {
		return transaction.Transaction{}, err
	}

	now := s.nextStamp()

	row := transaction.Transaction{
		ID:        uuid.New(),
		UserID:    intent.UserID,
		Date:      report.Truncate(intent.Date, report.IntervalDaily),
		Payee:     intent.Payee,
		Notes:     intent.Notes,
		Entries:   entries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.rows[row.ID] = row

	return cloneTransaction(row), nil
}

// Update replaces the stored row and its full entry set. A missing id/owner
// pair fails with transaction.ErrNotFound.
func (s *Store) Update(_ context.Context, id uuid.UUID, intent transaction.Intent) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.UserID != intent.UserID {
		return transaction.Transaction{}, transaction.ErrNotFound
	}

	entries, err := s.resolveEntries(intent.Entries)
	if err != nil {
		return transaction.Transaction{}, err
	}

	row.Date = report.Truncate(intent.Date, report.IntervalDaily)
	row.Payee = intent.Payee
	row.Notes = intent.Notes
	row.Entries = entries
	row.UpdatedAt = s.nextStamp()

	s.rows[id] = row

	return cloneTransaction(row), nil
}

// Delete removes the transaction if the owner holds it. Absent ids are not
// an error.
func (s *Store) Delete(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[id]; ok && row.UserID == userID {
		delete(s.rows, id)
	}

	return nil
}

// Get returns the transaction, or nil when absent or owned by someone else.
func (s *Store) Get(_ context.Context, userID string, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok || row.UserID != userID {
		return nil, nil
	}

	clone := cloneTransaction(row)

	return &clone, nil
}

// List returns one page in canonical order using keyset pagination.
func (s *Store) List(_ context.Context, query transaction.Query) (transaction.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eligible := make([]transaction.Transaction, 0, len(s.rows))

	for _, row := range s.rows {
		if row.UserID != query.UserID {
			continue
		}

		if query.Account != "" && !anyEntryMatches(row, query) {
			continue
		}

		if query.After != nil && !beforeCursor(row, *query.After) {
			continue
		}

		eligible = append(eligible, row)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].Date.Equal(eligible[j].Date) {
			return eligible[i].Date.After(eligible[j].Date)
		}

		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	page := transaction.Page{}

	if len(eligible) > transaction.PageSize {
		eligible = eligible[:transaction.PageSize]
		next := transaction.NextCursor(eligible[len(eligible)-1])
		page.Next = &next
	}

	page.Items = make([]transaction.Transaction, 0, len(eligible))
	for _, row := range eligible {
		page.Items = append(page.Items, cloneTransaction(row))
	}

	return page, nil
}

// ---------------------------------------------------------------------------
// AccountQueries
// ---------------------------------------------------------------------------

// AccountBalance returns the all-time balance per currency, ordered by code.
// A currency appears when the account has at least one entry in it, even if
// the entries net to zero.
func (s *Store) AccountBalance(_ context.Context, userID, account string) ([]currency.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := transaction.Query{Account: account}
	sums := make(map[string]int64)

	for _, row := range s.rows {
		if row.UserID != userID {
			continue
		}

		for _, entry := range row.Entries {
			if filter.MatchesAccount(entry.Account) {
				sums[entry.Amount.Currency.Code] += entry.Amount.Value
			}
		}
	}

	return s.sumsToAmounts(sums), nil
}

// MonthlyBalance returns per-month sums per currency for transactions dated
// on or after since.
func (s *Store) MonthlyBalance(_ context.Context, userID, account string, since time.Time) (map[time.Time][]currency.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := transaction.Query{Account: account}
	months := make(map[time.Time]map[string]int64)

	for _, row := range s.rows {
		if row.UserID != userID || row.Date.Before(since) {
			continue
		}

		month := report.Truncate(row.Date, report.IntervalMonthly)

		for _, entry := range row.Entries {
			if !filter.MatchesAccount(entry.Account) {
				continue
			}

			if months[month] == nil {
				months[month] = make(map[string]int64)
			}

			months[month][entry.Amount.Currency.Code] += entry.Amount.Value
		}
	}

	balances := make(map[time.Time][]currency.Amount, len(months))
	for month, sums := range months {
		balances[month] = s.sumsToAmounts(sums)
	}

	return balances, nil
}

// PeriodicCumulativeBalance folds per-period sums into a running balance per
// currency. All history feeds the running sums; since only restricts which
// points are returned.
func (s *Store) PeriodicCumulativeBalance(_ context.Context, userID, account string, interval report.Interval, since time.Time) (map[string]report.InstantBalances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := transaction.Query{Account: account}
	periods := make(map[string]map[time.Time]int64)

	for _, row := range s.rows {
		if row.UserID != userID {
			continue
		}

		instant := report.Truncate(row.Date, interval)

		for _, entry := range row.Entries {
			if !filter.MatchesAccount(entry.Account) {
				continue
			}

			code := entry.Amount.Currency.Code
			if periods[code] == nil {
				periods[code] = make(map[time.Time]int64)
			}

			periods[code][instant] += entry.Amount.Value
		}
	}

	series := make(map[string]report.InstantBalances, len(periods))

	for code, deltas := range periods {
		instants := make([]time.Time, 0, len(deltas))
		for instant := range deltas {
			instants = append(instants, instant)
		}

		sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })

		balances := report.InstantBalances{Currency: s.currencies[code]}

		var running int64

		for _, instant := range instants {
			running += deltas[instant]

			if instant.Before(since) {
				continue
			}

			balances.Balances = append(balances.Balances, report.InstantBalance{
				Instant: instant,
				Balance: running,
			})
		}

		if len(balances.Balances) > 0 {
			series[code] = balances
		}
	}

	return series, nil
}

// Accounts returns up to ten account names matching search, most used first.
func (s *Store) Accounts(_ context.Context, userID, search string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	counts := make(map[string]int)

	for _, row := range s.rows {
		if row.UserID != userID {
			continue
		}

		for _, entry := range row.Entries {
			if strings.Contains(strings.ToLower(entry.Account), needle) {
				counts[entry.Account]++
			}
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}

		return names[i] < names[j]
	})

	if len(names) > accountSearchLimit {
		names = names[:accountSearchLimit]
	}

	return names, nil
}

// ActiveAccounts returns the distinct account names with entries dated on or
// after since, ordered by name.
func (s *Store) ActiveAccounts(_ context.Context, userID string, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})

	for _, row := range s.rows {
		if row.UserID != userID || row.Date.Before(since) {
			continue
		}

		for _, entry := range row.Entries {
			seen[entry.Account] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// resolveEntries attaches catalog metadata to intent entries. Callers hold
// the write lock.
func (s *Store) resolveEntries(entries []transaction.IntentEntry) ([]transaction.Entry, error) {
	resolved := make([]transaction.Entry, 0, len(entries))

	for _, entry := range entries {
		c, ok := s.currencies[entry.Currency]
		if !ok {
			return nil, fmt.Errorf("%w: %q", currency.ErrNotFound, entry.Currency)
		}

		resolved = append(resolved, transaction.Entry{
			Account: entry.Account,
			Amount:  currency.NewAmount(c, entry.Value),
		})
	}

	return resolved, nil
}

func (s *Store) sumsToAmounts(sums map[string]int64) []currency.Amount {
	codes := make([]string, 0, len(sums))
	for code := range sums {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	amounts := make([]currency.Amount, 0, len(codes))
	for _, code := range codes {
		amounts = append(amounts, currency.NewAmount(s.currencies[code], sums[code]))
	}

	return amounts
}

func (s *Store) nextStamp() time.Time {
	now := s.clock.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}

	s.lastStamp = now

	return now
}

func anyEntryMatches(row transaction.Transaction, query transaction.Query) bool {
	for _, entry := range row.Entries {
		if query.MatchesAccount(entry.Account) {
			return true
		}
	}

	return false
}

// beforeCursor reports whether row sorts strictly after the cursor position
// under the canonical order, i.e. belongs to a later page.
func beforeCursor(row transaction.Transaction, cursor transaction.Cursor) bool {
	if row.Date.Before(cursor.Date) {
		return true
	}

	return row.Date.Equal(cursor.Date) && row.CreatedAt.Before(cursor.CreatedAt)
}

func cloneTransaction(row transaction.Transaction) transaction.Transaction {
	entries := make([]transaction.Entry, len(row.Entries))
	copy(entries, row.Entries)
	row.Entries = entries

	return row
}
