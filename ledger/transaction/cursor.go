package transaction

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PageSize is the fixed number of transactions per listing page. Stores
// fetch PageSize+1 rows to learn whether a further page exists.
const PageSize = 50

// ErrInvalidCursor indicates cursor text that could not be decoded.
var ErrInvalidCursor = errors.New("invalid transaction cursor")

const cursorDateLayout = "2006-01-02"

// Cursor marks a position in the canonical listing order: date descending,
// then created_at descending. Rows strictly after the cursor under that
// order belong to the next page.
type Cursor struct {
	Date      time.Time
	CreatedAt time.Time
}

// NextCursor returns the cursor pointing just past t.
func NextCursor(t Transaction) Cursor {
	return Cursor{Date: t.Date, CreatedAt: t.CreatedAt}
}

// Encode renders the cursor as opaque URL-safe text.
func (c Cursor) Encode() string {
	raw := c.Date.UTC().Format(cursorDateLayout) + "/" + c.CreatedAt.UTC().Format(time.RFC3339Nano)

	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses text produced by Encode. Failures wrap
// ErrInvalidCursor; callers treat them as caller input, not system faults.
func DecodeCursor(encoded string) (Cursor, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	datePart, createdPart, found := strings.Cut(string(decoded), "/")
	if !found {
		return Cursor{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}

	date, err := time.Parse(cursorDateLayout, datePart)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad date: %v", ErrInvalidCursor, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdPart)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad created_at: %v", ErrInvalidCursor, err)
	}

	return Cursor{Date: date, CreatedAt: createdAt}, nil
}

// Query selects a page of one user's transactions.
type Query struct {
	UserID string

	// Account, when set, keeps only transactions with at least one entry in
	// the account or any of its descendants.
	Account string

	// After resumes listing from a previous page's Next cursor.
	After *Cursor
}

// MatchesAccount reports whether an entry account name satisfies the query's
// account filter: the exact name or any colon-delimited descendant.
func (q Query) MatchesAccount(name string) bool {
	if q.Account == "" {
		return true
	}

	return name == q.Account || strings.HasPrefix(name, q.Account+":")
}

// Page is one listing result. Next is nil on the final page.
type Page struct {
	Items []Transaction
	Next  *Cursor
}
