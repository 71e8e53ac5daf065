// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Readings, failures and current ratio per watch
//   - Live stream client count
//   - Reading writer flushes, rows and errors
//   - HTTP request counts and latencies
package metrics
