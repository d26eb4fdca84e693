package wake

import (
	"fmt"
	"math"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultPhrase is the trigger utterance that activates the assistant.
	DefaultPhrase = "hi nova"

	// DefaultSimilarityThreshold is the minimum similarity for a fuzzy match.
	DefaultSimilarityThreshold = 0.7

	// directMatchConfidence is reported when the phrase appears verbatim.
	directMatchConfidence = 0.95

	// confidenceBoost slightly inflates fuzzy similarity before capping at 1.
	confidenceBoost = 1.2
)

// Result is the outcome of one wake-phrase check. Derived, never persisted.
type Result struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Matcher checks transcripts against a configured wake phrase. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	phrase    string
	threshold float64
}

// NewMatcher creates a wake-phrase matcher. The phrase is matched
// case-insensitively; threshold is the minimum similarity in (0, 1].
func NewMatcher(phrase string, threshold float64) (*Matcher, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, fmt.Errorf("wake phrase cannot be empty")
	}

	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %f", threshold)
	}

	return &Matcher{phrase: phrase, threshold: threshold}, nil
}

// Detect decides whether the wake phrase was spoken. The voice activity
// gate's verdict takes absolute precedence: without speech the transcript
// is never considered.
func (m *Matcher) Detect(transcript string, hasSpeech bool) Result {
	if !hasSpeech {
		return Result{
			Detected:   false,
			Confidence: 0.0,
			Reason:     "No speech activity detected",
		}
	}

	clean := strings.ToLower(strings.TrimSpace(transcript))

	if strings.Contains(clean, m.phrase) {
		return Result{
			Detected:   true,
			Confidence: directMatchConfidence,
			Reason:     "Direct match found",
		}
	}

	best := similarity(clean, m.phrase)

	// Slide a two-word window over the transcript; mishearings like
	// "hey nova" score higher against the phrase alone than against the
	// full utterance.
	words := strings.Fields(clean)
	for i := 0; i+1 < len(words); i++ {
		window := words[i] + " " + words[i+1]
		if s := similarity(window, m.phrase); s > best {
			best = s
		}
	}

	confidence := math.Min(best*confidenceBoost, 1.0)

	return Result{
		Detected:   best >= m.threshold,
		Confidence: math.Round(confidence*100) / 100,
		Reason:     fmt.Sprintf("Similarity score: %.2f", best),
	}
}

// Phrase returns the configured wake phrase (lowercased).
func (m *Matcher) Phrase() string {
	return m.phrase
}

// similarity is a character-sequence similarity ratio in [0, 1] derived
// from edit distance: identical strings score 1, disjoint strings 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}

	dist := matchr.Levenshtein(a, b)
	if dist > longest {
		dist = longest
	}

	return 1.0 - float64(dist)/float64(longest)
}
