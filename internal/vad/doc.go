// Package vad implements the voice activity gate. Audio is normalized to
// 16 kHz 16-bit mono PCM, split into fixed 30 ms frames, and classified by
// RMS energy. Ambiguous or malformed input fails open: the gate reports
// speech present rather than blocking wake-word detection.
package vad
