// Package api hosts the optional status server that runs alongside a crawl.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for live pool and visited-set counters as JSON.
package api
