package transaction

import (
	"fmt"
	"slices"
)

// Build turns raw input into a balanced Intent owned by userID, or reports
// every reason it cannot with an *InputError.
//
// The pipeline is: infer the balancing entry's amount where the rule allows
// it, run the structural rules, check that every currency nets to zero, and
// only then require that no entry is left without an amount. An entry whose
// amount could not be inferred (because nothing was unbalanced, or a second
// entry also omitted its amount) is reported, never guessed.
func Build(userID string, input Input) (Intent, error) {
	balanced := tryBalance(input)

	fields := validateStruct(balanced)
	fields = append(fields, validateBalanced(balanced)...)

	if len(fields) > 0 {
		return Intent{}, &InputError{Fields: fields}
	}

	entries := make([]IntentEntry, 0, len(balanced.Entries))

	for i, entry := range balanced.Entries {
		if entry.Amount == nil {
			return Intent{}, &InputError{Fields: []FieldError{{
				Field: fmt.Sprintf("entries[%d].amount", i),
				Code:  CodeRequired,
			}}}
		}

		entries = append(entries, IntentEntry{
			Account:  entry.Account,
			Currency: entry.Amount.Currency,
			Value:    entry.Amount.Value,
		})
	}

	return Intent{
		UserID:  userID,
		Date:    input.Date,
		Payee:   input.Payee,
		Notes:   input.Notes,
		Entries: entries,
	}, nil
}

// tryBalance fills in the single omitted amount when the input qualifies:
// exactly one entry without an amount and exactly one currency whose
// provided amounts do not net to zero. Any other shape is returned
// untouched for validation to report.
func tryBalance(input Input) Input {
	sums := make(map[string]int64)
	balancing := -1

	for i, entry := range input.Entries {
		if entry.Amount == nil {
			if balancing >= 0 {
				return input
			}

			balancing = i

			continue
		}

		sums[entry.Amount.Currency] += entry.Amount.Value
	}

	if balancing < 0 {
		return input
	}

	unbalanced := make([]string, 0, 1)

	for code, sum := range sums {
		if sum != 0 {
			unbalanced = append(unbalanced, code)
		}
	}

	if len(unbalanced) != 1 {
		return input
	}

	code := unbalanced[0]

	entries := slices.Clone(input.Entries)
	entries[balancing].Amount = &AmountInput{Currency: code, Value: -sums[code]}
	input.Entries = entries

	return input
}

// validateBalanced sums the provided amounts per currency and reports every
// non-zero total as one unbalanced field error.
func validateBalanced(input Input) []FieldError {
	sums := make(map[string]int64)

	for _, entry := range input.Entries {
		if entry.Amount != nil {
			sums[entry.Amount.Currency] += entry.Amount.Value
		}
	}

	nonzero := make(map[string]int64, len(sums))

	for code, sum := range sums {
		if sum != 0 {
			nonzero[code] = sum
		}
	}

	if len(nonzero) == 0 {
		return nil
	}

	return []FieldError{{Field: "entries", Code: CodeUnbalanced, Sums: nonzero}}
}
