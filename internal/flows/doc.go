// Package flows contains the orchestration behind every registration
// operation on the Engine.
//
// Each Run* function takes a RegistrationDeps value built by the root
// package and returns a result without holding state between calls. Store,
// limiter, materializer, notifier, audit and metrics are all reached through
// function fields, so tests can replace any of them.
//
// # What this package must NOT do
//
//   - Import goSignup (to avoid import cycles).
//   - Perform I/O except through RegistrationDeps.
//   - Log or return plaintext codes or passwords.
package flows
