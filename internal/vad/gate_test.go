package vad

import (
	"encoding/binary"
	"math"
	"testing"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	gate, err := NewGate(0.015, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	return gate
}

// pcm16 builds little-endian PCM bytes from int16 samples.
func pcm16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// toneBurst generates sine samples at the given frequency and amplitude.
func toneBurst(rate int, seconds float64, freq float64, amplitude int16) []int16 {
	n := int(float64(rate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(float64(amplitude) * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return samples
}

func TestNewGateValidation(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		expectErr bool
	}{
		{name: "valid threshold", threshold: 0.015, expectErr: false},
		{name: "zero threshold", threshold: 0, expectErr: true},
		{name: "negative threshold", threshold: -0.1, expectErr: true},
		{name: "threshold of one", threshold: 1, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.threshold, nil)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestHasSpeechSilence(t *testing.T) {
	gate := newTestGate(t)

	// Two seconds of digital silence at the analysis rate.
	silence := pcm16(make([]int16, AnalysisRate*2))

	if gate.HasSpeech(silence, AnalysisRate) {
		t.Error("Expected no speech in all-zero buffer")
	}
}

func TestHasSpeechToneBurst(t *testing.T) {
	gate := newTestGate(t)

	audio := pcm16(toneBurst(AnalysisRate, 0.5, 440, 8000))

	if !gate.HasSpeech(audio, AnalysisRate) {
		t.Error("Expected speech in tone burst")
	}
}

func TestHasSpeechResamples(t *testing.T) {
	gate := newTestGate(t)

	// A tone at 8 kHz must still register after resampling to 16 kHz.
	audio := pcm16(toneBurst(8000, 0.5, 440, 8000))
	if !gate.HasSpeech(audio, 8000) {
		t.Error("Expected speech in resampled tone burst")
	}

	// Silence at a foreign rate stays silence.
	silence := pcm16(make([]int16, 8000))
	if gate.HasSpeech(silence, 8000) {
		t.Error("Expected no speech in resampled silence")
	}
}

func TestHasSpeechDiscardsPartialTail(t *testing.T) {
	gate := newTestGate(t)

	// One full silent frame plus a loud partial frame. The tail is
	// discarded, so no speech may be reported.
	silentFrame := make([]int16, frameBytes/2)
	partial := toneBurst(AnalysisRate, 0.01, 440, 16000) // 160 samples < one frame

	audio := pcm16(append(silentFrame, partial...))

	if gate.HasSpeech(audio, AnalysisRate) {
		t.Error("Partial tail frame must not be analyzed")
	}
}

func TestHasSpeechFailOpen(t *testing.T) {
	gate := newTestGate(t)

	tests := []struct {
		name       string
		audio      []byte
		sampleRate int
		want       bool
	}{
		{name: "empty buffer", audio: nil, sampleRate: 16000, want: false},
		{name: "odd byte count", audio: []byte{1, 2, 3}, sampleRate: 16000, want: true},
		{name: "zero sample rate", audio: pcm16(make([]int16, 960)), sampleRate: 0, want: true},
		{name: "negative sample rate", audio: pcm16(make([]int16, 960)), sampleRate: -1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.HasSpeech(tt.audio, tt.sampleRate); got != tt.want {
				t.Errorf("HasSpeech = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasSpeechShorterThanFrame(t *testing.T) {
	gate := newTestGate(t)

	// Loud but shorter than one frame: nothing to analyze.
	audio := pcm16(toneBurst(AnalysisRate, 0.01, 440, 16000))

	if gate.HasSpeech(audio, AnalysisRate) {
		t.Error("Buffer shorter than one frame must report no speech")
	}
}

func TestResampleMono16(t *testing.T) {
	// Down-sampling halves the sample count.
	src := pcm16(toneBurst(16000, 0.1, 440, 8000))
	out := resampleMono16(src, 16000, 8000)

	if len(out) != len(src)/2 {
		t.Errorf("Expected %d bytes after 2:1 resample, got %d", len(src)/2, len(out))
	}

	// Same rate is a passthrough.
	if got := resampleMono16(src, 16000, 16000); len(got) != len(src) {
		t.Error("Same-rate resample must return input unchanged")
	}
}
