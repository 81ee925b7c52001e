// Package prometheus renders authcove engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [authcove.Engine] and exposes an
// [http.Handler]. Counter names are prefixed authcove_*_total; the single
// histogram is authcove_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
