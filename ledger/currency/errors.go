package currency

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a currency code absent from the catalog.
var ErrNotFound = errors.New("currency not found")

// InvalidNumberError reports text that could not be parsed as a monetary
// value. Raw preserves the caller's input for field-level display.
type InvalidNumberError struct {
	Raw string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("invalid number %q", e.Raw)
}

// TooManyDecimalsError reports a decimal part longer than the currency's
// minor units.
type TooManyDecimalsError struct {
	Currency Currency
	Decimals int
}

func (e *TooManyDecimalsError) Error() string {
	return fmt.Sprintf(
		"%s allows %d decimal place(s), got %d",
		e.Currency.Code, e.Currency.MinorUnits, e.Decimals,
	)
}
