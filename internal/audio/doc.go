// Package audio handles audio payload reconstruction and materialization.
// It decodes WAV containers and raw headerless PCM into normalized float
// samples, passes compressed formats through untouched, and persists
// request-scoped temporary audio files for the transcription engine.
package audio
