package currency

import (
	"strconv"
	"strings"
	"unicode"
)

// Currency is the immutable metadata needed to parse and format amounts.
// Instances are looked up by code; two currencies are the same iff their
// codes match.
type Currency struct {
	Code       string
	Symbol     string
	MinorUnits uint8
}

// New builds a Currency from its code and minor-unit count.
func New(code string, minorUnits uint8) Currency {
	return Currency{Code: code, MinorUnits: minorUnits}
}

// ParseValue converts user-facing decimal text into minor units.
//
// Grouping separators (commas and whitespace) are stripped, the text is
// split on the last decimal point, and the decimal part is right-padded
// with zeros to exactly MinorUnits digits before the whole string is parsed
// as a signed integer. A decimal part longer than MinorUnits fails with
// TooManyDecimalsError; anything that does not survive the integer parse
// fails with InvalidNumberError carrying the original text.
//
// Inputs without whole digits are valid: ".1" is one tenth, ".00" is zero.
func (c Currency) ParseValue(raw string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}

		return r
	}, raw)

	whole := cleaned
	decimals := ""

	if i := strings.LastIndex(cleaned, "."); i >= 0 {
		whole, decimals = cleaned[:i], cleaned[i+1:]
	}

	units := int(c.MinorUnits)
	if len(decimals) > units {
		return 0, &TooManyDecimalsError{Currency: c, Decimals: len(decimals)}
	}

	padded := whole + decimals + strings.Repeat("0", units-len(decimals))

	value, err := strconv.ParseInt(padded, 10, 64)
	if err != nil {
		return 0, &InvalidNumberError{Raw: raw}
	}

	return value, nil
}

// FormatValue renders minor units as decimal text.
//
// The sign is kept aside, the absolute value is zero-padded to at least
// MinorUnits+1 digits, and the decimal point is inserted MinorUnits digits
// from the end. Zero-decimal currencies render with no point at all.
func (c Currency) FormatValue(value int64) string {
	sign := ""

	// Negate via uint64 so MinInt64 cannot overflow.
	abs := uint64(value)
	if value < 0 {
		sign = "-"
		abs = uint64(-(value + 1)) + 1
	}

	digits := strconv.FormatUint(abs, 10)

	units := int(c.MinorUnits)
	if units == 0 {
		return sign + digits
	}

	if pad := units + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}

	split := len(digits) - units

	return sign + digits[:split] + "." + digits[split:]
}
