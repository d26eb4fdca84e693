package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// Sentinel errors for raw PCM reconstruction failures.
var (
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	ErrChannelMismatch     = errors.New("sample count does not divide into channels")
)

// Source tags which reconstruction attempt produced a DecodedAudio.
type Source int

const (
	// SourceWAV means the payload parsed as a self-describing WAV container.
	SourceWAV Source = iota
	// SourceRawPCM means the payload was reconstructed as headerless PCM
	// using caller-supplied parameters.
	SourceRawPCM
	// SourceOpaque means a compressed format passed through unchanged for
	// the downstream engine to unpack.
	SourceOpaque
	// SourceVerbatim means every reconstruction attempt failed and the raw
	// bytes are carried through as a last resort. The result may not be
	// decodable downstream.
	SourceVerbatim
)

func (s Source) String() string {
	switch s {
	case SourceWAV:
		return "wav"
	case SourceRawPCM:
		return "raw_pcm"
	case SourceOpaque:
		return "opaque"
	case SourceVerbatim:
		return "verbatim"
	default:
		return "unknown"
	}
}

// DecodedAudio is the canonical decoded form of an input payload: either
// normalized channel-interleaved float samples, or the original bytes for
// passthrough sources.
type DecodedAudio struct {
	Samples    []float32 // nil for passthrough sources
	SampleRate int
	Channels   int
	BitDepth   int
	Raw        []byte // original input bytes
	Source     Source

	// FallbackErr records why the WAV and raw PCM attempts failed when
	// Source is SourceVerbatim. The caller surfaces it as a warning.
	FallbackErr error
}

// RawParams carries the caller-supplied description of headerless PCM data.
type RawParams struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Decode converts an input buffer with a declared format into a DecodedAudio.
//
// Compressed formats the decoder does not unpack itself (mp3 and anything
// else that is not "wav") pass through unchanged, tagged SourceOpaque. For
// "wav" the attempts run in order: container parse, raw PCM reconstruction
// with params, verbatim passthrough. Decode never fails outright; degraded
// output is preferable to total failure.
func Decode(data []byte, format string, params RawParams) *DecodedAudio {
	if !strings.EqualFold(format, "wav") {
		out := &DecodedAudio{
			Raw:        data,
			SampleRate: params.SampleRate,
			Channels:   params.Channels,
			Source:     SourceOpaque,
		}
		if strings.EqualFold(format, "mp3") {
			if rate, ok := probeMP3(data); ok {
				out.SampleRate = rate
			}
		}
		return out
	}

	decoded, wavErr := ParseWAV(data)
	if wavErr == nil {
		return decoded
	}

	decoded, pcmErr := DecodePCM(data, params)
	if pcmErr == nil {
		return decoded
	}

	return &DecodedAudio{
		Raw:         data,
		SampleRate:  params.SampleRate,
		Channels:    params.Channels,
		Source:      SourceVerbatim,
		FallbackErr: fmt.Errorf("wav parse: %v; raw pcm: %v", wavErr, pcmErr),
	}
}

// DecodePCM reconstructs headerless PCM bytes into normalized float samples
// using the supplied parameters. Bit depths 8 (unsigned), 16 and 32 (signed
// little-endian) are supported. Multi-channel data stays channel-interleaved;
// a sample count that does not divide evenly into the channel count fails
// with ErrChannelMismatch.
func DecodePCM(data []byte, params RawParams) (*DecodedAudio, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}

	if params.Channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", params.Channels)
	}

	samples, err := rescalePCM(data, params.BitDepth)
	if err != nil {
		return nil, err
	}

	if len(samples)%params.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples across %d channels", ErrChannelMismatch, len(samples), params.Channels)
	}

	return &DecodedAudio{
		Samples:    samples,
		SampleRate: params.SampleRate,
		Channels:   params.Channels,
		BitDepth:   params.BitDepth,
		Raw:        data,
		Source:     SourceRawPCM,
	}, nil
}

// probeMP3 extracts the sample rate from an MP3 payload without decoding it.
// The bytes pass through regardless; the rate only enriches logging and the
// voice activity gate.
func probeMP3(data []byte) (int, bool) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	return dec.SampleRate(), true
}
