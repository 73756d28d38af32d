// Package postgres implements the ledger storage contracts on PostgreSQL.
//
// Connection owns the primary/replica pools behind a dbresolver that routes
// reads to replicas and everything transactional to the primary, and applies
// golang-migrate file migrations on connect. Store implements the service
// contracts on top of it; writes are single database transactions so a
// ledger transaction and its entries commit or roll back as one unit.
package postgres
