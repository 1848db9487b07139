// Package metrics exposes Prometheus collectors for reconciliation runs and upstream
// API traffic.
//
// Collectors are registered on the default registry. Runs are recorded with
// ObserveSummary once they finish; the upstream client records each request with
// ObserveUpstream.
package metrics
