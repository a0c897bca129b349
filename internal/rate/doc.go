// Package rate provides Redis-backed fixed-window counters used to throttle
// login, refresh and password reset traffic.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "rl:<rule>:<key>" where key is an opaque caller-chosen string, usually
// the client address.
//
// # What this package must NOT do
//
//   - Decide what to key on (that is the middleware's job).
//   - Be imported outside the accountguard module.
package rate
