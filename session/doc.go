// Package session issues and validates access and refresh tokens and
// delivers them to HTTP clients.
//
// # Architecture boundaries
//
// [Issuer] mints tokens through the jwt package and, on refresh, re-resolves
// the account so a deactivated or missing account fails closed even with a
// valid refresh token. Refresh tokens are not rotated.
//
// [Cookies] moves tokens in and out of HttpOnly, SameSite cookies, with a
// bearer header fallback for non-browser clients.
//
// # What this package must NOT do
//
//   - Put anything but the account id in a token.
//   - Keep server-side session state.
package session
