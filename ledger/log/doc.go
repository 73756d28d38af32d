// Package log defines the structured logging contract used across lib-ledger.
//
// The package is dependency-free on purpose: domain and storage packages
// program against Logger, while concrete backends live in subpackages such
// as ledger/zap. NopLogger is the null object used whenever a caller does
// not supply a logger.
package log
