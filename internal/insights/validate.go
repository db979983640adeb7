package insights

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// ParseError is raised when the capability's raw output cannot be turned
// into a valid insight result. It carries the raw text for diagnostics so
// no output is ever silently discarded.
type ParseError struct {
	Reason  string
	RawText string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse capability response: %s", e.Reason)
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of raw capability output, tolerating
// surrounding prose and code-fence wrapping. It tries, in order: the whole
// trimmed text, a fenced code block, and the first balanced brace span.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty response", RawText: text}
	}

	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		inner := strings.TrimSpace(m[1])
		if json.Valid([]byte(inner)) && strings.HasPrefix(inner, "{") {
			return json.RawMessage(inner), nil
		}
	}

	if span := firstBraceSpan(trimmed); span != "" && json.Valid([]byte(span)) {
		return json.RawMessage(span), nil
	}

	return nil, &ParseError{Reason: "no JSON object found in response", RawText: text}
}

// firstBraceSpan returns the first balanced-looking {...} span, respecting
// string literals so braces inside quoted text do not end the span early.
func firstBraceSpan(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// ValidateInsight checks that extracted JSON loosely matches the expected
// shape for the analysis type. Partial objects are accepted; the normalizer
// completes them afterwards. A result that lacks even the top-level section
// for its analysis type is rejected.
func ValidateInsight(raw json.RawMessage, analysisType string) (models.InsightResult, error) {
	var result models.InsightResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.InsightResult{}, &ParseError{
			Reason:  fmt.Sprintf("response shape invalid: %v", err),
			RawText: string(raw),
		}
	}

	missing := false
	switch analysisType {
	case models.AnalysisSummary:
		missing = result.Summary == nil
	case models.AnalysisThemes:
		missing = result.Themes == nil
	case models.AnalysisIssues:
		missing = result.Issues == nil
	case models.AnalysisComparison:
		missing = result.LocationComparison == nil
	case models.AnalysisTrends:
		missing = result.Trends == nil
	}
	if missing {
		return models.InsightResult{}, &ParseError{
			Reason:  fmt.Sprintf("response missing %s section", analysisType),
			RawText: string(raw),
		}
	}

	return result, nil
}

// ParseInsight runs extraction then validation on raw capability output.
func ParseInsight(text, analysisType string) (models.InsightResult, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return models.InsightResult{}, err
	}
	return ValidateInsight(raw, analysisType)
}
