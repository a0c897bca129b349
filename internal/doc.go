// Package internal contains helpers private to accountguard: secret
// generation and digest comparison.
//
// # Sub-packages
//
//   - logging: slog setup with service and trace attributes
//   - rate: Redis-backed fixed-window rate limiting
//
// # What this package must NOT do
//
//   - Export types that appear in the public accountguard API.
//   - Be imported by any package outside the accountguard module.
package internal
