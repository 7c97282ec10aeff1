// Package core provides the business logic of the fuel ledger.
//
// The package holds all domain rules independent of any transport. It is
// used by the web handlers and the ledgerctl CLI without modification.
//
// # Architecture
//
// Everything hangs off [Service], which owns a [store.Store] of JSON
// records addressed by slash-separated paths:
//
//   - tr800/{key} and allocations/{key}: TR800 entries and SSD allocations
//   - invoices/{number} and invoiceNumber: proforma invoices and their counter
//   - data/{id}: ledger invoices grouped by owner
//   - trucks, creditors, expenses: fleet and expense tracking
//   - users/{uid}: the work ID bound to each account
//   - audit_log/{id}: the audit trail
//
// # Consistency
//
// Multi-record writes go through [store.Store.Commit] so they apply
// together or not at all. Updates compare against the record as read and
// fail with a conflict if it changed in between. Invoice numbers are
// allocated under a distributed lock and the counter is advanced in the same
// commit that creates the invoice.
//
// # Mutation gate
//
// Updates and deletes of trucks, creditors and expenses require the work ID
// stored for the signed-in user. The check runs before anything is read or
// written; see package policy.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - VAL001-VAL008: Validation errors (dates, numbers, work IDs)
//   - DUP001-DUP002: Duplicate TR800 numbers and email addresses
//   - AUTH001-AUTH002: Work ID gate failures
//   - DB004-DB008: Backing store errors
//   - SES001-SES003: Session errors
//
// # Audit Logging
//
// Every committed mutation is recorded in the audit log with a severity.
// Entries older than [Config.AuditRetention] are purged by
// [Service.StartRetentionScheduler].
package core
