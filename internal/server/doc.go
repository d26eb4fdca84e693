// Package server implements the HTTP API: audio transcription and wake
// phrase recognition endpoints, text processing, and monitoring routes
// (health, sanitized config, statistics, Prometheus metrics). All routes
// share CORS handling, per-IP rate limiting, and request metrics.
package server
