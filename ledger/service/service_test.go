package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger"
	"github.com/LerianStudio/lib-ledger/ledger/currency"
	"github.com/LerianStudio/lib-ledger/ledger/log"
	"github.com/LerianStudio/lib-ledger/ledger/memory"
	"github.com/LerianStudio/lib-ledger/ledger/report"
	"github.com/LerianStudio/lib-ledger/ledger/service"
	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func catalog() []currency.Currency {
	return []currency.Currency{
		currency.New("BTC", 8),
		currency.New("EUR", 2),
		currency.New("JPY", 0),
		currency.New("USD", 2),
	}
}

func newLedger(t *testing.T, now time.Time) (*service.Ledger, *memory.Store) {
	t.Helper()

	store := memory.New(memory.Config{
		Currencies: catalog(),
		Clock:      fixedClock{now: now},
	})

	svc, err := service.New(service.Config{
		Currencies:   store,
		Transactions: store,
		Accounts:     store,
		Clock:        fixedClock{now: now},
	})
	require.NoError(t, err)

	return svc, store
}

func day(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)

	return parsed
}

func amountInput(code string, value int64) *transaction.AmountInput {
	return &transaction.AmountInput{Currency: code, Value: value}
}

func inputEntry(account string, amount *transaction.AmountInput) transaction.EntryInput {
	return transaction.EntryInput{Account: account, Amount: amount}
}

func newInput(date time.Time, payee string, entries ...transaction.EntryInput) transaction.Input {
	return transaction.Input{Date: date, Payee: payee, Entries: entries}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	store := memory.New(memory.Config{Currencies: catalog()})

	tests := []struct {
		name    string
		cfg     service.Config
		wantErr string
	}{
		{
			name:    "missing currencies",
			cfg:     service.Config{Transactions: store, Accounts: store},
			wantErr: "Currencies",
		},
		{
			name:    "missing transactions",
			cfg:     service.Config{Currencies: store, Accounts: store},
			wantErr: "Transactions",
		},
		{
			name:    "missing accounts",
			cfg:     service.Config{Currencies: store, Transactions: store},
			wantErr: "Accounts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := service.New(tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	svc, err := service.New(service.Config{Currencies: store, Transactions: store, Accounts: store})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

// ---------------------------------------------------------------------------
// Amounts
// ---------------------------------------------------------------------------

func TestParseAmount(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	tests := []struct {
		name string
		code string
		text string
		want int64
	}{
		{name: "dollars and cents", code: "USD", text: "10.99", want: 1099},
		{name: "thousands separator", code: "USD", text: "1,024.99", want: 102499},
		{name: "no minor units", code: "JPY", text: "400", want: 400},
		{name: "satoshi precision", code: "BTC", text: "0.00000001", want: 1},
		{name: "negative", code: "USD", text: "-3.50", want: -350},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			amount, err := svc.ParseAmount(ctx, tt.code, tt.text)
			require.NoError(t, err)

			assert.Equal(t, tt.code, amount.Currency.Code)
			assert.Equal(t, tt.want, amount.Value)
		})
	}
}

func TestParseAmountUnknownCurrency(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	_, err := svc.ParseAmount(context.Background(), "XYZ", "10.00")
	assert.ErrorIs(t, err, currency.ErrNotFound)
}

func TestParseAmountMalformedText(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	_, err := svc.ParseAmount(context.Background(), "USD", "1.2.3")

	var invalid *currency.InvalidNumberError

	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "1.2.3", invalid.Raw)
}

func TestParseAmountTooPrecise(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	_, err := svc.ParseAmount(context.Background(), "USD", "1.005")

	var tooPrecise *currency.TooManyDecimalsError

	require.ErrorAs(t, err, &tooPrecise)
	assert.Equal(t, 3, tooPrecise.Decimals)
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	usd := currency.New("USD", 2)
	assert.Equal(t, "-10.99", svc.FormatAmount(currency.NewAmount(usd, -1099)))

	jpy := currency.New("JPY", 0)
	assert.Equal(t, "400", svc.FormatAmount(currency.NewAmount(jpy, 400)))
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

func TestCreateTransactionStoresBalancedEntries(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-05-17"), "Grocery Store",
		inputEntry("Expenses:Food", amountInput("USD", 1099)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	require.Len(t, created.Entries, 2)
	assert.Equal(t, "Assets:Checking", created.Entries[1].Account)
	assert.Equal(t, int64(-1099), created.Entries[1].Amount.Value)
	assert.Equal(t, "USD", created.Entries[1].Amount.Currency.Code)

	found, err := svc.GetTransaction(ctx, "alice", created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created, *found)
}

func TestCreateTransactionReportsInvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-05-17"), "Grocery Store",
		inputEntry("Expenses:Food", amountInput("USD", 1099)),
		inputEntry("Assets:Checking", amountInput("USD", -1000)),
	))

	var inputErr *transaction.InputError

	require.ErrorAs(t, err, &inputErr)

	sums, ok := inputErr.Unbalanced()
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"USD": 99}, sums)

	// Nothing may reach storage when validation fails.
	page, err := svc.ListTransactions(ctx, transaction.Query{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestUpdateTransaction(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-05-17"), "Grocery Store",
		inputEntry("Expenses:Food", amountInput("USD", 1099)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	updated, err := svc.UpdateTransaction(ctx, "alice", created.ID, newInput(day(t, "2023-05-18"), "Corner Market",
		inputEntry("Expenses:Food", amountInput("USD", 1250)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Corner Market", updated.Payee)
	assert.Equal(t, int64(-1250), updated.Entries[1].Amount.Value)
}

func TestUpdateTransactionNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	_, err := svc.UpdateTransaction(context.Background(), "alice", uuid.New(), newInput(day(t, "2023-05-18"), "Nope",
		inputEntry("Expenses:Food", amountInput("USD", 1)),
		inputEntry("Assets:Checking", nil),
	))

	assert.ErrorIs(t, err, transaction.ErrNotFound)
}

func TestDeleteTransactionIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-05-17"), "Grocery Store",
		inputEntry("Expenses:Food", amountInput("USD", 1099)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(ctx, "alice", created.ID))
	require.NoError(t, svc.DeleteTransaction(ctx, "alice", created.ID))

	found, err := svc.GetTransaction(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetTransactionAbsent(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	found, err := svc.GetTransaction(context.Background(), "alice", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListTransactionsPaginates(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))
	ctx := context.Background()

	for i := 0; i < transaction.PageSize+1; i++ {
		_, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-01-01").AddDate(0, 0, i), fmt.Sprintf("Payee %02d", i),
			inputEntry("Expenses:Food", amountInput("USD", 100)),
			inputEntry("Assets:Checking", nil),
		))
		require.NoError(t, err)
	}

	first, err := svc.ListTransactions(ctx, transaction.Query{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, first.Items, transaction.PageSize)
	require.NotNil(t, first.Next)

	second, err := svc.ListTransactions(ctx, transaction.Query{UserID: "alice", After: first.Next})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Nil(t, second.Next)
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func TestMonthlyBalanceAppliesTrailingYearWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)
	svc, _ := newLedger(t, now)
	ctx := context.Background()

	days := map[string]int64{
		"2022-05-31": 100, // the month before the window opens
		"2022-06-01": 200,
		"2023-03-10": 300,
	}

	for date, value := range days {
		_, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, date), "Payee",
			inputEntry("Expenses:Food", amountInput("USD", value)),
			inputEntry("Assets:Checking", nil),
		))
		require.NoError(t, err)
	}

	months, err := svc.MonthlyBalance(ctx, "alice", "Expenses:Food")
	require.NoError(t, err)
	require.Len(t, months, 2)

	june := months[day(t, "2022-06-01")]
	require.Len(t, june, 1)
	assert.Equal(t, int64(200), june[0].Value)

	march := months[day(t, "2023-03-01")]
	require.Len(t, march, 1)
	assert.Equal(t, int64(300), march[0].Value)
}

func TestPeriodicBalanceRejectsUnknownInterval(t *testing.T) {
	t.Parallel()

	svc, _ := newLedger(t, day(t, "2023-06-15"))

	_, err := svc.PeriodicBalance(context.Background(), "alice", "Expenses:Food", report.Interval("quarter"))
	assert.ErrorIs(t, err, report.ErrUnknownInterval)
}

func TestPeriodicBalanceCarriesHistoryIntoWindow(t *testing.T) {
	t.Parallel()

	// Thursday. Weeks truncate to Monday 2023-06-12, so the window opens
	// one year before that.
	now := time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)
	svc, _ := newLedger(t, now)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2022-06-05"), "Opening",
		inputEntry("Assets:Savings", amountInput("USD", 100000)),
		inputEntry("Equity:Opening", nil),
	))
	require.NoError(t, err)

	_, err = svc.CreateTransaction(ctx, "alice", newInput(day(t, "2022-06-13"), "Withdrawal",
		inputEntry("Assets:Savings", amountInput("USD", -25000)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	series, err := svc.PeriodicBalance(ctx, "alice", "Assets:Savings", report.IntervalWeekly)
	require.NoError(t, err)
	require.Contains(t, series, "USD")

	usd := series["USD"]
	require.Len(t, usd.Balances, 1, "the opening deposit predates the window")
	assert.Equal(t, day(t, "2022-06-13"), usd.Balances[0].Instant)
	assert.Equal(t, int64(75000), usd.Balances[0].Balance, "history before the window still accumulates")
}

func TestActiveAccountsAppliesTrailingYearWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)
	svc, _ := newLedger(t, now)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "alice", newInput(day(t, "2022-06-14"), "Stale",
		inputEntry("Expenses:Relics", amountInput("USD", 100)),
		inputEntry("Assets:Old", nil),
	))
	require.NoError(t, err)

	_, err = svc.CreateTransaction(ctx, "alice", newInput(day(t, "2022-06-16"), "Fresh",
		inputEntry("Expenses:Food", amountInput("USD", 100)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	names, err := svc.ActiveAccounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Assets:Checking", "Expenses:Food"}, names)
}

// ---------------------------------------------------------------------------
// Fault handling and logging
// ---------------------------------------------------------------------------

type failingAccounts struct {
	service.AccountQueries
	err error
}

func (f failingAccounts) AccountBalance(context.Context, string, string) ([]currency.Amount, error) {
	return nil, f.err
}

func TestAccountBalanceWrapsStorageFaults(t *testing.T) {
	t.Parallel()

	store := memory.New(memory.Config{Currencies: catalog()})
	boom := errors.New("connection reset")

	svc, err := service.New(service.Config{
		Currencies:   store,
		Transactions: store,
		Accounts:     failingAccounts{AccountQueries: store, err: boom},
	})
	require.NoError(t, err)

	_, err = svc.AccountBalance(context.Background(), "alice", "Expenses:Food")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "account balance")
}

type recordingLogger struct {
	log.NopLogger

	messages []string
}

func (l *recordingLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	l.messages = append(l.messages, msg)
}

func TestServicePrefersContextLogger(t *testing.T) {
	t.Parallel()

	store := memory.New(memory.Config{Currencies: catalog()})
	injected := &recordingLogger{}
	scoped := &recordingLogger{}

	svc, err := service.New(service.Config{
		Currencies:   store,
		Transactions: store,
		Accounts:     store,
		Logger:       injected,
	})
	require.NoError(t, err)

	ctx := ledger.ContextWithLogger(context.Background(), scoped)

	_, err = svc.CreateTransaction(ctx, "alice", newInput(day(t, "2023-05-17"), "Grocery Store",
		inputEntry("Expenses:Food", amountInput("USD", 1099)),
		inputEntry("Assets:Checking", nil),
	))
	require.NoError(t, err)

	assert.Contains(t, scoped.messages, "transaction created")
	assert.Empty(t, injected.messages)
}
