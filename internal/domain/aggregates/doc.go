// Package aggregates defines domain-facing aggregate contracts for the
// production ledger.
//
// Contracts describe semantic write boundaries only: which invariants a write
// must hold atomically and which error codes a caller can branch on. Storage
// and transport live in internal/data and internal/http.
package aggregates
