package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// WAVHeader represents the canonical 44-byte header of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes normalized float samples into a 16-bit PCM WAV file.
// Samples are expected in the range [-1.0, 1.0) and channel-interleaved;
// out-of-range values are clamped.
func EncodeWAV(samples []float32, sampleRate int, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}

	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(pcm) * 2)
	fileSize := 36 + dataSize

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// ParseWAV parses a self-describing WAV container into normalized float
// samples. It walks RIFF chunks so files carrying extra metadata chunks
// (LIST, fact, ...) still parse. Only uncompressed PCM with 8, 16 or 32
// bits per sample is supported.
func ParseWAV(data []byte) (*DecodedAudio, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var (
		haveFmt       bool
		audioFormat   uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		pcmData       []byte
	)

	// Walk chunks after the RIFF/WAVE preamble.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkSize < 0 || body+chunkSize > len(data) {
			return nil, fmt.Errorf("invalid WAV file: chunk %q overruns buffer", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("invalid WAV file: fmt chunk too short (%d bytes)", chunkSize)
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcmData = data[body : body+chunkSize]
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if pcmData == nil {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if audioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", audioFormat)
	}

	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	samples, err := rescalePCM(pcmData, bitsPerSample)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio data found")
	}

	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples across %d channels", ErrChannelMismatch, len(samples), channels)
	}

	return &DecodedAudio{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitsPerSample,
		Raw:        data,
		Source:     SourceWAV,
	}, nil
}

// rescalePCM converts little-endian integer PCM bytes to normalized floats.
// The rescale rules are fixed: s16/32768, s32/2147483648, (u8-128)/128.
func rescalePCM(data []byte, bitDepth int) ([]float32, error) {
	switch bitDepth {
	case 8:
		samples := make([]float32, len(data))
		for i, b := range data {
			samples[i] = (float32(b) - 128.0) / 128.0
		}
		return samples, nil
	case 16:
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("pcm byte length %d not aligned to 16-bit samples", len(data))
		}
		samples := make([]float32, len(data)/2)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples[i] = float32(v) / 32768.0
		}
		return samples, nil
	case 32:
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("pcm byte length %d not aligned to 32-bit samples", len(data))
		}
		samples := make([]float32, len(data)/4)
		for i := range samples {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			samples[i] = float32(float64(v) / 2147483648.0)
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
}

// Duration returns the decoded audio length in seconds, or 0 for
// passthrough payloads without decoded samples.
func (d *DecodedAudio) Duration() float64 {
	if len(d.Samples) == 0 || d.SampleRate <= 0 || d.Channels <= 0 {
		return 0
	}
	frames := len(d.Samples) / d.Channels
	return math.Round(float64(frames)/float64(d.SampleRate)*1000) / 1000
}
