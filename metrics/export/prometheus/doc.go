// Package prometheus exposes engine counters and the verification latency histogram
// to Prometheus.
//
// [PrometheusExporter] renders text exposition directly and needs no registry.
// [Collector] plugs the same values into a client_golang registry for services that
// already serve promhttp. Counter names are adminauth_*_total; the histogram is
// adminauth_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
