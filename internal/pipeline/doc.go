// Package pipeline orchestrates audio ingestion: validate, decode,
// materialize, transcribe, and optionally gate and match the wake phrase.
// Failures are mapped to stable error kinds so the transport layer can
// translate them to status codes without inspecting error text.
package pipeline
