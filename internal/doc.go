// Package internal contains helpers that are private to goSignup: session
// identifier generation and one-time code generation/hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - dispatch: retrying worker pool that delivers verification codes
//   - flows: pure-function orchestrators for every Engine operation
//   - limiters: Redis fixed-window throttles for start, verify and resend
//   - stores: Redis-backed registration session store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSignup API.
//   - Be imported by any package outside the goSignup module.
package internal
