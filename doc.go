// Package goSignup gates account registration behind a one-time code sent
// out of band.
//
// A client submits registration fields to [Engine.StartRegistration] and
// receives a session ID. The code is delivered asynchronously by email (and
// optionally SMS). [Engine.SubmitCode] checks it: a match creates the
// durable account through the configured [AccountMaterializer] exactly once,
// no matter how many identical submissions race; a wrong code consumes one
// of MaxAttempts; [Engine.RequestResend] rotates the code subject to a
// cooldown.
//
// # Architecture boundaries
//
// goSignup is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Sessions live in Redis under internal/stores, the state
// machine lives in internal/flows, and delivery runs on the worker pool in
// internal/dispatch. None of these are exported.
//
// # What this package must NOT do
//
//   - Keep per-session state in process memory.
//   - Store or log plaintext codes or passwords.
//   - Issue login sessions or tokens for the new account.
package goSignup
