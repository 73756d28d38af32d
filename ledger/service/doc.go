// Package service exposes the ledger engine behind a single façade.
//
// Ledger wires the transaction balancing engine to injected collaborators:
// a currency catalog, a transaction store, account aggregation queries and a
// clock. The façade owns none of the storage technology; adapters live in
// ledger/memory and ledger/postgres and satisfy the contracts declared here.
package service
