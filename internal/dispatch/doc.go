// Package dispatch delivers notifications asynchronously with retries.
//
// # Components
//
//   - [Dispatcher]: bounded queue drained by a fixed worker pool.
//   - [RetryPolicy]: retry budget, exponential backoff with jitter and a
//     retryability predicate.
//   - [Observer]: side channel for delivered and terminally failed jobs.
//
// # Architecture boundaries
//
// Submit never blocks on delivery: callers get a [JobHandle] as soon as the
// job is queued. Delivery outcomes are only visible through the Observer.
//
// # What this package must NOT do
//
//   - Import goSignup or any sibling internal package.
//   - Log or expose message bodies; they carry verification codes.
package dispatch
