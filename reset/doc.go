// Package reset manages password reset tokens.
//
// At most one token is live per account. The token itself is handed to an
// out-of-band delivery collaborator; only its SHA-256 digest and expiry are
// kept on the account. Verification compares digests in constant time and
// does not consume; Consume applies the new password and clears the token.
//
// Looking up the account, and answering identically when it does not exist,
// is the caller's job.
package reset
