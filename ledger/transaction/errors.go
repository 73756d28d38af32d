package transaction

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound indicates that a transaction id does not exist for the owner.
// Update and Get surface it; Delete stays idempotent and never returns it.
var ErrNotFound = errors.New("transaction not found")

// Field error codes. Structural codes mirror the validation tag that failed;
// CodeUnbalanced is produced by the balance check and carries the per-currency
// sums that failed to net to zero.
const (
	CodeRequired   = "required"
	CodeMin        = "min"
	CodeInvalid    = "invalid"
	CodeUnbalanced = "unbalanced"
)

// FieldError locates one validation failure within an Input.
type FieldError struct {
	// Field addresses the offending input field: "payee", "entries",
	// "entries[1].amount".
	Field string
	Code  string

	// Sums holds the non-zero per-currency totals when Code is
	// CodeUnbalanced; nil otherwise.
	Sums map[string]int64
}

func (e FieldError) Error() string {
	if e.Code == CodeUnbalanced {
		return fmt.Sprintf("%s: %s (%s)", e.Field, e.Code, formatSums(e.Sums))
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Code)
}

func formatSums(sums map[string]int64) string {
	codes := make([]string, 0, len(sums))
	for code := range sums {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s %+d", code, sums[code]))
	}

	return strings.Join(parts, ", ")
}

// InputError aggregates every field-level failure found in one Input. It is
// always caller input, never a system fault.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Error())
	}

	return "invalid transaction input: " + strings.Join(parts, "; ")
}

// Unbalanced returns the per-currency sums of the unbalanced failure, if one
// is present.
func (e *InputError) Unbalanced() (map[string]int64, bool) {
	for _, field := range e.Fields {
		if field.Code == CodeUnbalanced {
			return field.Sums, true
		}
	}

	return nil, false
}

// FieldCode reports the code recorded for the given field path, if any.
func (e *InputError) FieldCode(field string) (string, bool) {
	for _, candidate := range e.Fields {
		if candidate.Field == field {
			return candidate.Code, true
		}
	}

	return "", false
}
