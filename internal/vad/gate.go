package vad

import (
	"fmt"
	"log/slog"
	"math"
)

const (
	// AnalysisRate is the sample rate all audio is normalized to before
	// frame analysis.
	AnalysisRate = 16000

	// FrameDurationMs is the fixed analysis frame length.
	FrameDurationMs = 30

	// frameBytes is one full frame at 16 kHz, 16-bit, mono.
	frameBytes = AnalysisRate * FrameDurationMs / 1000 * 2
)

// Gate answers whether an audio segment contains speech energy.
// It is read-only after construction and safe for concurrent use.
type Gate struct {
	threshold float64
	logger    *slog.Logger
}

// NewGate creates a voice activity gate. threshold is the normalized RMS
// energy (0..1 of full scale) above which a frame counts as speech.
func NewGate(threshold float64, logger *slog.Logger) (*Gate, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1 exclusive, got %f", threshold)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{threshold: threshold, logger: logger}, nil
}

// HasSpeech reports whether audio (16-bit little-endian PCM at sampleRate)
// contains at least one speech frame. Evaluation short-circuits on the first
// positive frame; a partial frame at the tail is discarded.
//
// HasSpeech never fails: when the input cannot be normalized or framed it
// returns true. Under ambiguity the gate must not veto wake-word detection.
func (g *Gate) HasSpeech(audio []byte, sampleRate int) bool {
	if len(audio) == 0 {
		return false
	}

	if sampleRate <= 0 {
		g.logger.Warn("Speech activity detection failed, assuming speech present",
			slog.Int("sample_rate", sampleRate),
		)
		return true
	}

	if len(audio)%2 != 0 {
		g.logger.Warn("Speech activity detection failed, assuming speech present",
			slog.String("reason", "byte length not aligned to 16-bit samples"),
			slog.Int("bytes", len(audio)),
		)
		return true
	}

	if sampleRate != AnalysisRate {
		audio = resampleMono16(audio, sampleRate, AnalysisRate)
	}

	for off := 0; off+frameBytes <= len(audio); off += frameBytes {
		if g.isSpeechFrame(audio[off : off+frameBytes]) {
			return true
		}
	}

	return false
}

// isSpeechFrame classifies one full frame by normalized RMS energy.
func (g *Gate) isSpeechFrame(frame []byte) bool {
	var sum float64
	n := len(frame) / 2

	for i := 0; i < n; i++ {
		s := float64(int16(frame[i*2]) | int16(frame[i*2+1])<<8)
		sum += s * s
	}

	rms := math.Sqrt(sum/float64(n)) / 32768.0
	return rms >= g.threshold
}

// resampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. If the rates already match, the input is returned
// unchanged.
func resampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}

	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}

	return out
}
