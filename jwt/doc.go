// Package jwt signs and verifies the access and refresh bearer tokens.
//
// Tokens carry only the account id (sub), a random jti and their kind (typ).
// Verification pins the algorithm, checks issuer and audience when
// configured, and evaluates exp, nbf and iat against a caller-supplied time
// so lifetimes are testable without sleeping.
package jwt
