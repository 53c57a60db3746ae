// Package stores provides the Redis-backed ephemeral store for in-flight
// registration sessions and their resend cooldown markers.
//
// # Design
//
// A session is a versioned, binary-encoded record kept under a TTL. Every
// mutation is an atomic read-modify-write: [RegistrationStore.Update] runs a
// caller-supplied function inside a WATCH/MULTI transaction with automatic
// retry on contention, and the hot verification path can instead run as a
// single Lua script. Records that fail to decode are deleted and reported as
// absent. Code hashes are compared in constant time.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for sessions. It does
// NOT generate codes, enforce rate limits, deliver messages or create
// accounts. Those responsibilities belong to the flow functions in
// internal/flows.
//
// # What this package must NOT do
//
//   - Import goSignup or any sibling internal package.
//   - Store or log plaintext codes.
//   - Use non-constant-time comparisons for code matching.
package stores
