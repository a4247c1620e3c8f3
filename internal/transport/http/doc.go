// Package http exposes the public API: job creation and retrieval, live
// progress streaming over WebSocket, CSV and Excel exports, job listing,
// and health/version endpoints.
package http
