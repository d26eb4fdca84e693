package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempFile is a uniquely named, request-scoped audio file. The creating
// request owns it and must call Remove on every exit path.
type TempFile struct {
	Path string
	Size int64
}

// Materialize writes raw bytes to a uniquely named temporary file in dir.
// An empty dir means the system temp directory. Names carry a UUID so
// concurrent requests can never collide. A zero-length payload is written
// as-is; emptiness is validated elsewhere.
func Materialize(dir string, data []byte, suffix string) (*TempFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, fmt.Sprintf("nova_audio_%s%s", uuid.NewString(), suffix))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write temp audio file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close temp audio file: %w", err)
	}

	return &TempFile{Path: path, Size: int64(len(data))}, nil
}

// MaterializeDecoded persists a DecodedAudio. Decoded samples are written as
// a well-formed 16-bit PCM WAV file; passthrough payloads are written
// verbatim with the supplied suffix.
func MaterializeDecoded(dir string, decoded *DecodedAudio, suffix string) (*TempFile, error) {
	if len(decoded.Samples) == 0 {
		return Materialize(dir, decoded.Raw, suffix)
	}

	wav, err := EncodeWAV(decoded.Samples, decoded.SampleRate, decoded.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decoded samples: %w", err)
	}

	return Materialize(dir, wav, ".wav")
}

// Remove deletes the file. It is idempotent: removing an already-removed
// file is not an error.
func (t *TempFile) Remove() error {
	err := os.Remove(t.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove temp audio file %s: %w", t.Path, err)
	}
	return nil
}
