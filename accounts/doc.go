// Package accounts holds AccountMaterializer implementations for the
// durable account stores goSignup ships with.
//
// Every store enforces email and username uniqueness per tenant and
// reports collisions as goSignup.ErrAccountConflict. Every store also
// records the registration session that created an account, which makes
// CreateAccount idempotent per session and lets FindAccount resolve
// OutcomeUncertain registrations.
package accounts
