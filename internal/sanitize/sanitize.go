// Package sanitize strips personally identifying substrings from review
// text before it is exposed to any external capability.
package sanitize

import (
	"fmt"
	"regexp"

	"github.com/zombar/reviewinsights/internal/models"
)

// Redaction order matters for overlapping matches: URLs and emails are
// consumed before bare @handles (so user@domain.com becomes [EMAIL], not a
// partially redacted handle), and phone patterns are matched as complete
// digit sequences rather than generic digit runs.
var (
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d(?:[\s().-]{0,2}\d){9,}`)
	handleRe = regexp.MustCompile(`@\w+`)
)

// Redact replaces PII substrings with placeholder tokens. It is pure and
// total: it never fails and returns the empty string for empty input.
func Redact(text string) string {
	if text == "" {
		return ""
	}
	text = urlRe.ReplaceAllString(text, "[URL]")
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	text = handleRe.ReplaceAllString(text, "[HANDLE]")
	return text
}

// Reviews maps Redact over a review collection. Cardinality is preserved
// (no review is ever dropped) and every output review carries an ID,
// generated deterministically as review-{index} when the upstream omitted it.
func Reviews(raw []models.RawReview) []models.SanitizedReview {
	sanitized := make([]models.SanitizedReview, len(raw))
	for i, r := range raw {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("review-%d", i)
		}
		sanitized[i] = models.SanitizedReview{
			ID:               id,
			StoreID:          r.StoreID,
			Rating:           r.Rating,
			Text:             Redact(r.Comment),
			Date:             r.Date,
			HasOwnerResponse: r.HasOwnerResponse,
		}
	}
	return sanitized
}
