package currency

import (
	"github.com/shopspring/decimal"
)

// Amount pairs a Currency with an exact value in minor units.
type Amount struct {
	Currency Currency
	Value    int64
}

// NewAmount builds an Amount from a minor-unit value.
func NewAmount(c Currency, value int64) Amount {
	return Amount{Currency: c, Value: value}
}

// ParseAmount parses user-facing decimal text into an Amount.
func ParseAmount(c Currency, raw string) (Amount, error) {
	value, err := c.ParseValue(raw)
	if err != nil {
		return Amount{}, err
	}

	return Amount{Currency: c, Value: value}, nil
}

// String renders the amount as decimal text. The output round-trips through
// ParseAmount for the same currency.
func (a Amount) String() string {
	return a.Currency.FormatValue(a.Value)
}

// Equal reports whether two amounts share a currency code and value.
func (a Amount) Equal(other Amount) bool {
	return a.Currency.Code == other.Currency.Code && a.Value == other.Value
}

// Decimal returns the amount as an exact decimal scaled by the currency's
// minor units: USD 12893 becomes 128.93.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.Value, -int32(a.Currency.MinorUnits))
}

// AmountFromDecimal converts an exact decimal into an Amount.
//
// Precision beyond the currency's minor units fails with
// TooManyDecimalsError rather than rounding; values outside the int64
// minor-unit range fail with InvalidNumberError.
func AmountFromDecimal(c Currency, d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(int32(c.MinorUnits))

	if !scaled.IsInteger() {
		return Amount{}, &TooManyDecimalsError{Currency: c, Decimals: decimalPlaces(d)}
	}

	bigValue := scaled.BigInt()
	if !bigValue.IsInt64() {
		return Amount{}, &InvalidNumberError{Raw: d.String()}
	}

	return Amount{Currency: c, Value: bigValue.Int64()}, nil
}

func decimalPlaces(d decimal.Decimal) int {
	if exp := d.Exponent(); exp < 0 {
		return int(-exp)
	}

	return 0
}
