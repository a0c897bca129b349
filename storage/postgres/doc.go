// Package postgres stores accounts and security events in PostgreSQL via
// pgx.
//
// AccountRepository implements account.Repository with a version
// compare-and-swap on Save. EventStore implements audit.Sink. Migrator
// applies the embedded schema with golang-migrate.
//
// Errors carry samber/oops codes and attributes; lookups that match nothing
// and lost version races still match account.ErrNotFound and
// account.ErrConflict under errors.Is.
package postgres
