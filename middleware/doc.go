// Package middleware exposes HTTP middleware that prepares request contexts
// for goSignup.Engine calls.
//
// # Context
//
//   - [ClientContext] stores the client IP and tenant ID with
//     goSignup.WithClientIP and goSignup.WithTenantID, which the engine's
//     throttles and audit events read.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into context values. It does NOT
// implement registration logic; all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Trust forwarding headers itself. Run chi's RealIP (or an equivalent)
//     in front when the service sits behind a proxy.
//   - Access Redis.
package middleware
