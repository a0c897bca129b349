// Package account defines the Account record shared by every security
// component and the Repository contract used to load and persist it.
//
// # Architecture boundaries
//
// The package owns the data model and its invariants (reset token and expiry
// travel together, Clone never aliases pointers). It does not decide lockout,
// reset or session policy; those live in lockout, reset and session.
//
// # What this package must NOT do
//
//   - Import accountguard or any component package.
//   - Hash, compare or generate secrets.
package account
