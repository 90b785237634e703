// Package api provides the HTTP surface of the PromptFlow engine.
//
// # API Overview
//
// PromptFlow exposes a RESTful API for:
//   - Synchronous single-prompt execution with automatic model fallback
//   - Batch submission and status polling
//   - Code generation with file context
//   - Health monitoring and Prometheus metrics
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Endpoints
//
//	POST   /v1/ask           — execute one prompt synchronously
//	POST   /v1/code          — generate code from a task description
//	POST   /v1/batches       — submit a batch for background execution
//	GET    /v1/batches/{id}  — poll a batch snapshot
//	DELETE /v1/batches/{id}  — cancel a running batch
//	GET    /health           — liveness check
//	GET    /ready            — readiness check with dependency probes
//	GET    /metrics          — Prometheus metrics
package api
