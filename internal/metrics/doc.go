// Package metrics tracks relay process counters and exposes them in
// Prometheus text exposition format. Families are assembled by hand from
// client_model types and encoded with expfmt; the counters themselves are
// plain atomics updated on the hot paths.
package metrics
