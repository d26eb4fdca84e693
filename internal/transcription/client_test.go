package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeAudioFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}
	return path
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9000/v1/transcribe"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// Defaults are applied for unset fields.
	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}

	if cap(client.semaphore) != 10 {
		t.Errorf("Expected default concurrency 10, got %d", cap(client.semaphore))
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file field: %v", err)
		} else {
			file.Close()
			if header.Filename == "" {
				t.Error("Expected a filename on the file part")
			}
		}

		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language field 'en', got %q", got)
		}

		json.NewEncoder(w).Encode(map[string]string{"text": "  hi nova, what's up  "})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, Language: "en"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), writeAudioFile(t, "fake-wav-bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "hi nova, what's up" {
		t.Errorf("Expected trimmed transcript, got %q", text)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://localhost:9000/v1/transcribe"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), "/nonexistent/audio.wav"); err == nil {
		t.Error("Expected error for missing audio file")
	}
}

func TestTranscribeEmptyFile(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://localhost:9000/v1/transcribe"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), writeAudioFile(t, "")); err == nil {
		t.Error("Expected error for empty audio file")
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "recovered"})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), writeAudioFile(t, "bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "recovered" {
		t.Errorf("Expected 'recovered', got %q", text)
	}

	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unsupported audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), writeAudioFile(t, "bytes")); err == nil {
		t.Fatal("Expected error for 400 response")
	}

	if calls.Load() != 1 {
		t.Errorf("Expected 1 attempt for a client error, got %d", calls.Load())
	}
}

func TestTranscribeRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 5})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Transcribe(ctx, writeAudioFile(t, "bytes"))
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}

	// The retry backoff must not outlive the context.
	if time.Since(start) > 2*time.Second {
		t.Error("Transcribe did not honor context cancellation during backoff")
	}
}

func TestProviderInitializesOnce(t *testing.T) {
	var inits atomic.Int32

	provider := &Provider{
		newClient: func() (*Client, error) {
			inits.Add(1)
			time.Sleep(10 * time.Millisecond) // widen the race window
			return NewClient(Config{Endpoint: "http://localhost:9000/v1/transcribe"})
		},
	}

	const n = 50
	clients := make([]*Client, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := provider.Get(context.Background())
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	if got := inits.Load(); got != 1 {
		t.Errorf("Expected exactly 1 initialization, got %d", got)
	}

	for i := 1; i < n; i++ {
		if clients[i] != clients[0] {
			t.Fatal("All callers must observe the same client handle")
		}
	}
}

func TestProviderRetriesAfterFailure(t *testing.T) {
	var attempts atomic.Int32

	provider := &Provider{
		newClient: func() (*Client, error) {
			if attempts.Add(1) == 1 {
				return nil, context.DeadlineExceeded
			}
			return NewClient(Config{Endpoint: "http://localhost:9000/v1/transcribe"})
		},
	}

	if _, err := provider.Get(context.Background()); err == nil {
		t.Fatal("Expected first initialization to fail")
	}

	client, err := provider.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}

	if client == nil {
		t.Fatal("Expected a client after successful retry")
	}
}
