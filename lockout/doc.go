// Package lockout implements the progressive account lockout state machine.
//
// An account is Unlocked until its consecutive failed logins reach the policy
// threshold; each failure from then on sets a lock window of
// BaseDuration * 2^(attempts-threshold), capped at MaxDuration. A successful
// login or a manual unlock returns it to Unlocked with a zero count.
//
// Lock expiry is evaluated lazily by [IsLocked]; there is no background
// sweep.
//
// The check in IsLocked and the write in RecordFailure/RecordSuccess are not
// atomic. Callers persist the mutated account through a repository that
// rejects stale writes (account.ErrConflict) and re-run the operation.
package lockout
