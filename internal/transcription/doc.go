// Package transcription implements the HTTP client for the external
// speech-recognition engine. It posts materialized audio files as multipart
// form data, retries transient failures with exponential backoff, bounds
// concurrency with a semaphore, and provides a lazily-initialized shared
// client handle with at-most-once initialization.
package transcription
