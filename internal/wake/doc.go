// Package wake implements wake-phrase detection on transcripts. A direct
// substring match wins outright; otherwise the matcher takes the maximum
// character-sequence similarity across the full transcript and every
// contiguous two-word window against the configured phrase.
package wake
