package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// rule maps a keyword to a reply builder. Builders take the current time so
// time-sensitive replies are deterministic under an injected clock.
type rule struct {
	keyword string
	reply   func(now time.Time) string
}

// Responder turns a transcript into an assistant reply. Matching is
// case-insensitive substring search over an ordered rule list, so earlier
// rules win when a transcript mentions several keywords.
type Responder struct {
	rules  []rule
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Responder using the wall clock.
func New(logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Responder{
		logger: logger,
		now:    time.Now,
		rules: []rule{
			{"weather", func(time.Time) string {
				return "I'd be happy to help with weather information, but I don't have access to current weather data. You might want to check a weather app or website for the most up-to-date forecast in your area."
			}},
			{"time", func(now time.Time) string {
				return fmt.Sprintf("The current time is %s.", now.Format("03:04 PM"))
			}},
			{"date", func(now time.Time) string {
				return fmt.Sprintf("Today's date is %s.", now.Format("January 02, 2006"))
			}},
			{"hello", func(time.Time) string {
				return "Hello! I'm NOVA, your voice assistant. How can I help you today?"
			}},
			{"help", func(time.Time) string {
				return "I can help you with various tasks. You can ask me about the time, date, or general questions. What would you like to know?"
			}},
		},
	}
}

// WithClock overrides the time source. Used by tests.
func (r *Responder) WithClock(now func() time.Time) *Responder {
	r.now = now
	return r
}

// Respond builds a reply for text. callContext is the caller-supplied
// conversation context for this call; the keyword rules do not consume it
// yet, but it travels with the request rather than living in server-side
// history. Unmatched transcripts get an echo reply so the caller always has
// something to say back.
func (r *Responder) Respond(ctx context.Context, text, callContext string) string {
	if err := ctx.Err(); err != nil {
		return ""
	}

	lower := strings.ToLower(text)
	for _, rule := range r.rules {
		if strings.Contains(lower, rule.keyword) {
			r.logger.Debug("Responder matched keyword",
				slog.String("keyword", rule.keyword),
				slog.Int("context_length", len(callContext)),
			)
			return rule.reply(r.now())
		}
	}

	return fmt.Sprintf("I understand you said: '%s'. I'm still learning and may not have a specific response for that yet. Is there anything else I can help you with?", text)
}
