package wake

import (
	"strings"
	"testing"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultPhrase, DefaultSimilarityThreshold)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	return m
}

func TestNewMatcherValidation(t *testing.T) {
	tests := []struct {
		name      string
		phrase    string
		threshold float64
		expectErr bool
	}{
		{name: "valid", phrase: "hi nova", threshold: 0.7, expectErr: false},
		{name: "empty phrase", phrase: "", threshold: 0.7, expectErr: true},
		{name: "whitespace phrase", phrase: "   ", threshold: 0.7, expectErr: true},
		{name: "zero threshold", phrase: "hi nova", threshold: 0, expectErr: true},
		{name: "threshold above one", phrase: "hi nova", threshold: 1.1, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatcher(tt.phrase, tt.threshold)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestDetectDirectMatch(t *testing.T) {
	m := newTestMatcher(t)

	result := m.Detect("hi nova, what's up", true)

	if !result.Detected {
		t.Error("Expected detection for direct match")
	}

	if result.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %f", result.Confidence)
	}

	if result.Reason != "Direct match found" {
		t.Errorf("Unexpected reason: %q", result.Reason)
	}
}

func TestDetectCaseInsensitive(t *testing.T) {
	m := newTestMatcher(t)

	result := m.Detect("  Hi NOVA please  ", true)
	if !result.Detected || result.Confidence != 0.95 {
		t.Errorf("Expected direct match regardless of case, got %+v", result)
	}
}

func TestDetectFuzzyWindowMatch(t *testing.T) {
	m := newTestMatcher(t)

	result := m.Detect("hey nova", true)

	if !result.Detected {
		t.Fatalf("Expected fuzzy detection for 'hey nova', got %+v", result)
	}

	// Fuzzy match: confidence is boosted similarity, strictly between the
	// boosted threshold and 1.0, never the direct-match constant.
	if result.Confidence <= DefaultSimilarityThreshold*confidenceBoost-0.01 || result.Confidence >= 1.0 {
		t.Errorf("Expected confidence in fuzzy range, got %f", result.Confidence)
	}

	if !strings.HasPrefix(result.Reason, "Similarity score: ") {
		t.Errorf("Unexpected reason: %q", result.Reason)
	}
}

func TestDetectWindowBeatsFullString(t *testing.T) {
	m := newTestMatcher(t)

	// The full transcript is far from the phrase, but the two-word window
	// "hey nova" is close enough to trigger.
	result := m.Detect("could you please hey nova turn on the lights", true)

	if !result.Detected {
		t.Errorf("Expected window match to trigger detection, got %+v", result)
	}
}

func TestDetectNoMatch(t *testing.T) {
	m := newTestMatcher(t)

	tests := []string{
		"completely unrelated words",
		"turn off the bedroom lights",
		"",
	}

	for _, transcript := range tests {
		result := m.Detect(transcript, true)
		if result.Detected {
			t.Errorf("Transcript %q: expected no detection, got %+v", transcript, result)
		}
	}
}

func TestDetectGateVeto(t *testing.T) {
	m := newTestMatcher(t)

	// The gate veto wins even over a verbatim phrase.
	for _, transcript := range []string{"hi nova", "hey nova", "anything at all"} {
		result := m.Detect(transcript, false)

		if result.Detected {
			t.Errorf("Transcript %q: gate veto must prevent detection", transcript)
		}

		if result.Confidence != 0.0 {
			t.Errorf("Transcript %q: expected confidence 0.0, got %f", transcript, result.Confidence)
		}

		if result.Reason != "No speech activity detected" {
			t.Errorf("Transcript %q: unexpected reason %q", transcript, result.Reason)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	m := newTestMatcher(t)

	first := m.Detect("hey nova", true)
	for i := 0; i < 10; i++ {
		if got := m.Detect("hey nova", true); got != first {
			t.Fatalf("Detect is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"hi nova", "hi nova", 1.0},
		{"", "", 1.0},
		{"abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		if got := similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}

	// "hey nova" vs "hi nova": two edits over eight characters.
	if got := similarity("hey nova", "hi nova"); got < 0.7 || got >= 1.0 {
		t.Errorf("similarity('hey nova', 'hi nova') = %f, want within [0.7, 1.0)", got)
	}
}
