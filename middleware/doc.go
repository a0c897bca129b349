// Package middleware exposes the HTTP guards that run in front of the
// accountguard handlers.
//
// # Guards
//
//   - [ClientIP] records the caller address for rate limiting and security
//     events.
//   - [RateLimit] charges one request against an Engine.Throttle budget.
//   - [RequireAccess] resolves the access token to an active account.
//   - [RequireAdminKey] protects administrative routes with a shared key.
//
// [Chain] composes guards in the order they are listed, so a route reads
// the way requests flow: client address, rate limit, credentials, handler.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens, talk to Redis or make lockout decisions itself.
package middleware
