// Command mock-engine runs a stand-in transcription endpoint for local
// development. It accepts the same multipart request the service sends and
// always answers with a canned transcript.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

var (
	transcript = flag.String("text", "hi nova what is the weather today", "Transcript to return for every request")
	delay      = flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	addr       = flag.String("addr", ":9000", "Listen address")
)

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("Transcription request: file=%s size=%d content_type=%s language=%s model=%s",
		header.Filename,
		len(audioData),
		header.Header.Get("Content-Type"),
		r.FormValue("language"),
		r.FormValue("model"),
	)

	// Simulate processing time
	time.Sleep(*delay)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(transcriptionResponse{Text: *transcript})

	log.Printf("Transcription response sent: %q", *transcript)
}

func main() {
	flag.Parse()

	http.HandleFunc("/v1/audio/transcriptions", transcribeHandler)
	http.HandleFunc("/transcribe", transcribeHandler)

	log.Printf("Mock transcription engine starting on %s", *addr)
	log.Printf("Point the service at http://localhost%s/v1/audio/transcriptions", *addr)

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
