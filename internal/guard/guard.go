// Package guard holds the input hygiene pieces of the engine: display
// name sanitization and per-player submission rate limiting. Player
// names are the only free text the engine accepts from clients.
package guard

import (
	"strings"
	"time"
	"unicode"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// MaxNameLength caps sanitized display names, in runes.
const MaxNameLength = 30

// SanitizeName strips markup and control characters from a
// client-supplied display name, collapses whitespace, and caps the
// length. It returns ErrInvalidName when nothing printable survives.
func SanitizeName(raw string) (string, error) {
	var b strings.Builder
	inTag := false
	for _, r := range raw {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case inTag:
			// drop tag contents entirely
		case unicode.IsControl(r):
			// drop
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" {
		return "", domain.ErrInvalidName
	}
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return name, nil
}

// SubmissionLimiter enforces a fixed attempt budget within a rolling
// window. The window length matches the question time budget, so the
// limiter naturally resets once a question's time has fully elapsed.
// It is not safe for concurrent use; callers hold the session lock.
type SubmissionLimiter struct {
	limit       int
	window      time.Duration
	windowStart time.Time
	attempts    int
}

// NewSubmissionLimiter builds a limiter allowing limit attempts per window.
func NewSubmissionLimiter(limit int, window time.Duration) *SubmissionLimiter {
	return &SubmissionLimiter{limit: limit, window: window}
}

// Allow records one attempt and reports whether it is within budget.
func (l *SubmissionLimiter) Allow(now time.Time) bool {
	if l.attempts == 0 || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.attempts = 0
	}
	l.attempts++
	return l.attempts <= l.limit
}

// Reset clears the window, used when a new question becomes current.
func (l *SubmissionLimiter) Reset() {
	l.attempts = 0
	l.windowStart = time.Time{}
}
