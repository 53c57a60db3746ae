// Package limiters provides the Redis fixed-window throttles in front of
// registration start, code verification and resend.
//
// Starts are counted per address and per client IP; verify and resend are
// counted per client IP only, since per-session attempts are already capped
// by the session record. Keys are namespaced by tenant.
//
// A nil *RegistrationLimiter allows everything.
//
// # What this package must NOT do
//
//   - Import goSignup or any sibling internal package.
//   - Decide consequences. Flow functions map ErrRegistrationRateLimited.
package limiters
