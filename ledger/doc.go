// Package ledger provides the shared plumbing used by the lib-ledger
// subpackages.
//
// The package carries request-scoped facilities through context.Context.
// Typical usage at ingress:
//
//	ctx = ledger.ContextWithLogger(ctx, logger)
//
// Domain logic lives in subpackages: currency, transaction, report, and
// service; storage adapters live in memory and postgres.
package ledger
