// Package otel publishes registration engine metrics through an
// OpenTelemetry Meter supplied by the caller.
//
// Registration lifecycle counters (started, code_invalid, completed,
// uncertain and the rest) become observable counters named as in the
// Prometheus exporter. Account materializer latency is exposed as one
// gauge per cumulative bucket plus a _count gauge, because the engine
// keeps bucket counts rather than raw samples. Notification delivery
// jobs are a single counter split by a "state" attribute.
//
// All instruments are read in one callback, so a collection observes a
// single engine snapshot.
package otel
