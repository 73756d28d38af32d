package transaction_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	cursor := transaction.Cursor{
		Date:      time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2023, time.May, 17, 9, 30, 12, 345678000, time.UTC),
	}

	decoded, err := transaction.DecodeCursor(cursor.Encode())

	require.NoError(t, err)
	assert.True(t, cursor.Date.Equal(decoded.Date))
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
}

func TestCursorEncodeIsURLSafe(t *testing.T) {
	t.Parallel()

	cursor := transaction.Cursor{
		Date:      time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2023, time.May, 17, 9, 30, 12, 0, time.UTC),
	}

	encoded := cursor.Encode()

	raw, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, "2023-05-17/2023-05-17T09:30:12Z", string(raw))
}

func TestDecodeCursorRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	encode := func(raw string) string {
		return base64.URLEncoding.EncodeToString([]byte(raw))
	}

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "not base64", encoded: "%%%"},
		{name: "missing separator", encoded: encode("2023-05-17")},
		{name: "bad date", encoded: encode("yesterday/2023-05-17T09:30:12Z")},
		{name: "bad created_at", encoded: encode("2023-05-17/noonish")},
		{name: "empty", encoded: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := transaction.DecodeCursor(tt.encoded)

			require.ErrorIs(t, err, transaction.ErrInvalidCursor)
		})
	}
}

func TestDecodeCursorEmptyStringIsMissingSeparator(t *testing.T) {
	t.Parallel()

	// "" is valid base64 for zero bytes; the separator check catches it.
	_, err := transaction.DecodeCursor("")

	require.ErrorIs(t, err, transaction.ErrInvalidCursor)
}

func TestQueryMatchesAccount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filter  string
		account string
		want    bool
	}{
		{name: "no filter matches everything", filter: "", account: "Expenses:Gas", want: true},
		{name: "exact match", filter: "Expenses:Food", account: "Expenses:Food", want: true},
		{name: "descendant matches", filter: "Expenses:Food", account: "Expenses:Food:Snacks", want: true},
		{name: "deep descendant matches", filter: "Expenses", account: "Expenses:Food:Snacks", want: true},
		{name: "shared prefix without separator", filter: "Expenses:Food", account: "Expenses:Foodstuff", want: false},
		{name: "parent does not match child filter", filter: "Expenses:Food", account: "Expenses", want: false},
		{name: "unrelated account", filter: "Expenses:Food", account: "Income:Salary", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := transaction.Query{UserID: "user-1", Account: tt.filter}

			assert.Equal(t, tt.want, q.MatchesAccount(tt.account))
		})
	}
}
