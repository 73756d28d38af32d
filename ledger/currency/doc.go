// Package currency implements exact monetary values as integer minor units.
//
// A Currency describes how many fractional digits a unit carries (2 for USD
// cents, 0 for JPY, 8 for BTC). An Amount pairs a Currency with an int64
// value in minor units; floating point is never used. Parsing and formatting
// are lossless inverses: ParseValue(FormatValue(v)) == v for every valid v.
package currency
