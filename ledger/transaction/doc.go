// Package transaction implements the double-entry transaction domain: raw
// input validation, the auto-balancing rule, the persisted transaction
// shape, and the keyset pagination primitives used to list transactions.
//
// The balancing rule is the heart of double-entry input: at most one entry
// may omit its amount, and when exactly one currency is out of balance that
// entry absorbs the difference. Every successfully built transaction nets to
// zero in every currency it touches.
package transaction
