// Package api defines the request and response types of the StreamFlow
// HTTP API.
//
// # API Overview
//
// StreamFlow provides a RESTful API for:
//   - Stream lifecycle management (create, submit chunks, cancel)
//   - Retrieving accumulated stream results
//   - Engine statistics, diagnostics and runtime reconfiguration
//   - Health monitoring and metrics
//   - Live diagnostics streaming over WebSocket
//
// # Authentication
//
// Most API endpoints require authentication via the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// or a JWT bearer token:
//
//	Authorization: Bearer <token>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Envelope
//
// Every endpoint responds with the unified JSON envelope implemented in
// api/handlers:
//
//	{
//	  "success": true,
//	  "data": { ... },
//	  "timestamp": "2025-06-01T12:00:00Z",
//	  "request_id": "req-1a2b3c"
//	}
//
// Errors carry a structured error object instead of data:
//
//	{
//	  "success": false,
//	  "error": {"code": "STREAM_NOT_FOUND", "message": "...", "retryable": false},
//	  "timestamp": "2025-06-01T12:00:00Z"
//	}
package api
