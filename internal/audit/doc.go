// Package audit relays registration lifecycle events to a sink.
//
// # Components
//
//   - [Sink]: event consumer: channel, JSON lines, slog or no-op.
//   - [Dispatcher]: buffered async relay, drop-if-full or block-if-full.
//   - [Event]: timestamp, type, tenant, session, account, IP, metadata.
//
// # Architecture boundaries
//
// The Engine decides which events exist. This package only buffers and
// delivers them.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import goSignup or any sibling internal package.
package audit
