// Package password is the credential store: salted adaptive hashing and
// constant-time verification of account passwords, plus the strength policy
// applied to new passwords.
//
// # Output format
//
// New hashes come from the configured primary algorithm:
//
//	$2b$<cost>$<salt+hash>                                  (bcrypt)
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>  (argon2id)
//
// [Multi] verifies either format by prefix and reports [Multi.NeedsRehash] so
// callers can upgrade stored hashes after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other accountguard package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
