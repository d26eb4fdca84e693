package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestMaterialize(t *testing.T) {
	dir := t.TempDir()

	tmp, err := Materialize(dir, []byte("audio-bytes"), ".wav")
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if !strings.HasSuffix(tmp.Path, ".wav") {
		t.Errorf("Expected .wav suffix, got %s", tmp.Path)
	}

	if !strings.HasPrefix(filepath.Base(tmp.Path), "nova_audio_") {
		t.Errorf("Expected nova_audio_ prefix, got %s", filepath.Base(tmp.Path))
	}

	data, err := os.ReadFile(tmp.Path)
	if err != nil {
		t.Fatalf("Failed to read materialized file: %v", err)
	}

	if string(data) != "audio-bytes" {
		t.Errorf("Expected file contents %q, got %q", "audio-bytes", string(data))
	}

	if tmp.Size != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), tmp.Size)
	}

	if err := tmp.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := os.Stat(tmp.Path); !os.IsNotExist(err) {
		t.Error("Expected file to be deleted after Remove")
	}
}

func TestMaterializeZeroLength(t *testing.T) {
	// Writing an empty payload is not an error at this layer.
	tmp, err := Materialize(t.TempDir(), nil, ".mp3")
	if err != nil {
		t.Fatalf("Materialize failed on empty payload: %v", err)
	}
	defer tmp.Remove()

	if tmp.Size != 0 {
		t.Errorf("Expected size 0, got %d", tmp.Size)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	tmp, err := Materialize(t.TempDir(), []byte("x"), ".wav")
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if err := tmp.Remove(); err != nil {
		t.Fatalf("First Remove failed: %v", err)
	}

	if err := tmp.Remove(); err != nil {
		t.Errorf("Second Remove should be a no-op, got: %v", err)
	}
}

func TestMaterializeDecoded(t *testing.T) {
	dir := t.TempDir()

	t.Run("decoded samples become WAV", func(t *testing.T) {
		decoded := &DecodedAudio{
			Samples:    []float32{0, 0.5, -0.5},
			SampleRate: 16000,
			Channels:   1,
			Source:     SourceRawPCM,
		}

		tmp, err := MaterializeDecoded(dir, decoded, ".wav")
		if err != nil {
			t.Fatalf("MaterializeDecoded failed: %v", err)
		}
		defer tmp.Remove()

		data, err := os.ReadFile(tmp.Path)
		if err != nil {
			t.Fatalf("Failed to read materialized file: %v", err)
		}

		if _, err := ParseWAV(data); err != nil {
			t.Errorf("Materialized file is not a valid WAV: %v", err)
		}
	})

	t.Run("passthrough written verbatim", func(t *testing.T) {
		raw := []byte{0xff, 0xfb, 0x01, 0x02}
		decoded := &DecodedAudio{Raw: raw, Source: SourceOpaque}

		tmp, err := MaterializeDecoded(dir, decoded, ".mp3")
		if err != nil {
			t.Fatalf("MaterializeDecoded failed: %v", err)
		}
		defer tmp.Remove()

		data, err := os.ReadFile(tmp.Path)
		if err != nil {
			t.Fatalf("Failed to read materialized file: %v", err)
		}

		if string(data) != string(raw) {
			t.Error("Passthrough payload must be written verbatim")
		}
	})
}

func TestMaterializeConcurrentUniqueness(t *testing.T) {
	dir := t.TempDir()

	const n = 100
	paths := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmp, err := Materialize(dir, []byte("concurrent"), ".wav")
			if err != nil {
				t.Errorf("Materialize failed: %v", err)
				return
			}
			paths <- tmp.Path
			tmp.Remove()
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Errorf("Duplicate temp file path: %s", p)
		}
		seen[p] = true
	}

	// Every file was removed; the directory must be empty again.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 leftover files, found %d", len(entries))
	}
}
