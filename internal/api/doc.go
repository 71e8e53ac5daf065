// Package api holds the JSON shapes of the watcher HTTP API and a client
// for it.
//
// Endpoints:
//   - GET  /health
//   - GET  /api/v1/watches
//   - GET  /api/v1/watches/{name}
//   - GET  /api/v1/watches/{name}/history?limit=N
//   - POST /api/v1/watches/{name}/resubscribe
//   - GET  /api/v1/portfolio
//
// The live stream is served on /ws/{name}; see package connection.
package api
