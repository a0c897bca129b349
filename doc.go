// Package accountguard is an account-security engine: password
// authentication with progressive lockout, signed session tokens,
// single-use password reset tokens and a security event trail.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// accountguard is the public surface. It exposes [Engine], [Builder],
// [Config] and the error kinds callers switch on. The building blocks live in
// their own packages and know nothing about each other's storage:
//
//   - password: hashing, verification and strength policy.
//   - lockout: the failed-attempt state machine.
//   - reset: reset token issue, verify and consume.
//   - session and jwt: token minting, validation and cookie transport.
//   - audit: security events and sinks.
//   - account: the account record and repository contract.
//
// The engine composes them: every operation is one read-modify-write of one
// account row, retried on a version conflict, with its security events
// published only after the row is saved.
//
// Around the core, httpapi and middleware serve the JSON routes,
// storage/postgres persists accounts and events, metrics/export publishes
// counters, and cmd/accountguard runs the server and operator commands.
//
// # What this package must NOT do
//
//   - Leak storage, hashing or token parsing details through returned errors.
//   - Tell an unknown identifier apart from a wrong password.
//   - Hold process-wide state. Sinks, repositories and clocks are injected.
package accountguard
