// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/runs/:id/ws to receive live updates as a
// run moves through decomposition, execution and aggregation.
package websocket
