// Package metric provides Prometheus metrics for licmesh.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, counters and the /metrics handler
//   - collector.go: scrape-time gauges read from the ledger
//
// A nil *Registry records nothing.
package metric
