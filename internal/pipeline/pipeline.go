package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nova-voice/nova-audio-service/internal/audio"
	"github.com/nova-voice/nova-audio-service/internal/metrics"
	"github.com/nova-voice/nova-audio-service/internal/vad"
	"github.com/nova-voice/nova-audio-service/internal/wake"
)

// MaxAudioBytes is the hard ceiling on fully decoded input, enforced before
// any decode or materialize work begins.
const MaxAudioBytes = 25 << 20 // 25 MiB

// allowedContentTypes is the upload allow-list.
var allowedContentTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
}

// Engine is the external transcription collaborator: it consumes a
// materialized audio file and returns plain text.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// EngineFunc resolves the shared engine handle, initializing it lazily on
// first use.
type EngineFunc func(ctx context.Context) (Engine, error)

// Upload is a raw file upload with its declared content type.
type Upload struct {
	Data        []byte
	ContentType string
}

// Buffer is a decoded base64 audio buffer with raw-PCM parameters.
type Buffer struct {
	Data       []byte
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Request carries exactly one input variant.
type Request struct {
	Upload *Upload
	Buffer *Buffer
}

// TranscribeResult is the outcome of a transcription-only request.
type TranscribeResult struct {
	Transcript string
}

// Pipeline orchestrates ingestion for the two supported operations. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	engine  EngineFunc
	gate    *vad.Gate
	matcher *wake.Matcher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tempDir string // empty means the system temp directory
}

// New creates a Pipeline.
func New(engine EngineFunc, gate *vad.Gate, matcher *wake.Matcher, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine:  engine,
		gate:    gate,
		matcher: matcher,
		metrics: m,
		logger:  logger,
	}
}

// WithTempDir overrides the materialization directory. Used by tests.
func (p *Pipeline) WithTempDir(dir string) *Pipeline {
	p.tempDir = dir
	return p
}

// Transcribe runs the transcription-only operation.
func (p *Pipeline) Transcribe(ctx context.Context, req Request) (TranscribeResult, error) {
	text, _, _, err := p.run(ctx, req)
	if err != nil {
		return TranscribeResult{}, err
	}
	return TranscribeResult{Transcript: text}, nil
}

// Recognise runs transcription plus wake-phrase detection. The raw input
// bytes flow into the voice activity gate alongside the transcript.
func (p *Pipeline) Recognise(ctx context.Context, req Request) (wake.Result, error) {
	text, raw, sampleRate, err := p.run(ctx, req)
	if err != nil {
		return wake.Result{}, err
	}

	hasSpeech := p.gate.HasSpeech(raw, sampleRate)
	p.metrics.RecordVADCheck(hasSpeech)

	result := p.matcher.Detect(text, hasSpeech)
	p.metrics.RecordWakeCheck(result.Detected, result.Confidence)

	p.logger.Info("Wake phrase check completed",
		slog.Bool("detected", result.Detected),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("has_speech", hasSpeech),
	)

	return result, nil
}

// run executes the shared validate -> decode -> materialize -> transcribe
// sequence and returns the transcript, the raw audio bytes, and the sample
// rate for downstream gating.
func (p *Pipeline) run(ctx context.Context, req Request) (string, []byte, int, error) {
	decoded, suffix, err := p.prepare(req)
	if err != nil {
		return "", nil, 0, err
	}

	tmp, err := audio.MaterializeDecoded(p.tempDir, decoded, suffix)
	if err != nil {
		p.metrics.RecordTempFileFailure()
		return "", nil, 0, newError(KindIO, "failed to store audio", err)
	}
	p.metrics.RecordTempFileCreated()

	// Cleanup is unconditional: success, error, or cancellation.
	defer func() {
		if err := tmp.Remove(); err != nil {
			p.metrics.RecordTempFileFailure()
			p.logger.Error("Failed to remove temp audio file",
				slog.String("path", tmp.Path),
				slog.String("error", err.Error()),
			)
		}
	}()

	engine, err := p.engine(ctx)
	if err != nil {
		return "", nil, 0, newError(KindEngine, "transcription engine unavailable", err)
	}

	start := time.Now()
	text, err := engine.Transcribe(ctx, tmp.Path)
	p.metrics.RecordTranscription(err == nil, time.Since(start).Seconds())
	if err != nil {
		// Verbatim-fallback files are expected to be rejected here.
		p.logger.Error("Transcription failed",
			slog.String("source", decoded.Source.String()),
			slog.String("error", err.Error()),
		)
		return "", nil, 0, newError(KindEngine, "transcription failed", err)
	}

	text = strings.TrimSpace(text)
	p.logger.Info("Transcription completed",
		slog.String("source", decoded.Source.String()),
		slog.Int("transcript_length", len(text)),
	)

	sampleRate := decoded.SampleRate
	if sampleRate <= 0 {
		sampleRate = vad.AnalysisRate
	}

	return text, decoded.Raw, sampleRate, nil
}

// prepare validates the request and reconstructs a decodable payload. The
// size ceiling applies to the fully decoded bytes and is checked before any
// decode or materialize work.
func (p *Pipeline) prepare(req Request) (*audio.DecodedAudio, string, error) {
	switch {
	case req.Upload != nil && req.Buffer != nil:
		return nil, "", newError(KindValidation, "request must carry exactly one audio variant", nil)

	case req.Upload != nil:
		up := req.Upload

		if len(up.Data) > MaxAudioBytes {
			p.metrics.RecordOversizedInput()
			return nil, "", newError(KindValidation, "file too large, maximum size is 25MB", ErrTooLarge)
		}

		contentType := normalizeContentType(up.ContentType)
		if contentType != "" && !allowedContentTypes[contentType] {
			return nil, "", newError(KindValidation,
				fmt.Sprintf("invalid audio format %q, supported formats: MP3, WAV", contentType), nil)
		}

		// Uploads are already container-framed; carry them through and let
		// the engine decode.
		suffix := ".wav"
		if strings.Contains(contentType, "mp3") || strings.Contains(contentType, "mpeg") {
			suffix = ".mp3"
		}

		decoded := &audio.DecodedAudio{
			Raw:        up.Data,
			SampleRate: vad.AnalysisRate,
			Channels:   1,
			Source:     audio.SourceOpaque,
		}
		p.metrics.RecordDecodedPayload(decoded.Source.String(), len(up.Data))
		return decoded, suffix, nil

	case req.Buffer != nil:
		buf := req.Buffer

		if len(buf.Data) > MaxAudioBytes {
			p.metrics.RecordOversizedInput()
			return nil, "", newError(KindValidation, "audio data too large, maximum size is 25MB", ErrTooLarge)
		}

		format := strings.ToLower(buf.Format)
		if format == "" {
			format = "mp3"
		}
		// The format tag becomes the temp-file suffix; anything outside a
		// short alphanumeric token could smuggle path separators into the
		// materialized name.
		if !validFormatTag(format) {
			return nil, "", newError(KindValidation,
				fmt.Sprintf("invalid audio format %q, supported formats: MP3, WAV", buf.Format), nil)
		}

		decoded := audio.Decode(buf.Data, format, audio.RawParams{
			SampleRate: buf.SampleRate,
			Channels:   buf.Channels,
			BitDepth:   buf.BitDepth,
		})

		if decoded.Source == audio.SourceVerbatim {
			p.metrics.RecordDecodeFallback()
			p.logger.Warn("Audio reconstruction failed, writing buffer verbatim",
				slog.String("format", format),
				slog.String("error", decoded.FallbackErr.Error()),
			)
		}
		p.metrics.RecordDecodedPayload(decoded.Source.String(), len(buf.Data))

		return decoded, "." + format, nil

	default:
		return nil, "", newError(KindValidation, "either file upload or JSON audio_buffer must be provided", nil)
	}
}

// validFormatTag accepts short lowercase alphanumeric format tags like
// "mp3", "wav" or "raw".
func validFormatTag(format string) bool {
	if len(format) == 0 || len(format) > 8 {
		return false
	}
	for _, r := range format {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// normalizeContentType strips parameters like "; codecs=..." and lowercases.
func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
