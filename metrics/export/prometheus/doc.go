// Package prometheus exposes engine metrics through prometheus/client_golang.
//
// The exporter is a pull-based Collector: each scrape takes one
// MetricsSnapshot and emits constant metrics from it. Counter names come
// from internaldefs so they match the OTel exporter.
package prometheus
