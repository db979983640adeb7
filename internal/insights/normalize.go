package insights

import (
	"strconv"

	"github.com/zombar/reviewinsights/internal/models"
)

// Default values used when the capability omits optional fields
const (
	defaultSeverity  = "medium"
	defaultSentiment = "neutral"
	defaultDirection = "stable"
)

// Normalize defensively completes an insight result into the canonical
// shape, regardless of which analyzer produced it: the section demanded by
// the analysis type always exists, optional scalar fields get deterministic
// defaults, and no slice or map is ever nil. Normalize is idempotent.
func Normalize(result models.InsightResult, analysisType string) models.InsightResult {
	switch analysisType {
	case models.AnalysisThemes:
		if result.Themes == nil {
			result.Themes = &models.Themes{}
		}
	case models.AnalysisIssues:
		if result.Issues == nil {
			result.Issues = []models.Issue{}
		}
	case models.AnalysisComparison:
		if result.LocationComparison == nil {
			result.LocationComparison = []models.LocationComparison{}
		}
	case models.AnalysisTrends:
		if result.Trends == nil {
			result.Trends = &models.Trends{}
		}
	default:
		if result.Summary == nil {
			result.Summary = &models.Summary{}
		}
	}

	if result.Summary != nil {
		normalizeSummary(result.Summary)
	}
	if result.Themes != nil {
		result.Themes.Positive = normalizeThemes(result.Themes.Positive)
		result.Themes.Negative = normalizeThemes(result.Themes.Negative)
	}
	for i := range result.Issues {
		normalizeIssue(&result.Issues[i])
	}
	for i := range result.LocationComparison {
		normalizeComparison(&result.LocationComparison[i])
	}
	if result.Trends != nil {
		normalizeTrends(result.Trends)
	}
	return result
}

func normalizeSummary(s *models.Summary) {
	if s.OverallSentiment == "" {
		s.OverallSentiment = defaultSentiment
	}
	if s.RatingDistribution == nil {
		s.RatingDistribution = map[string]int{}
	}
	for rating := 1; rating <= 5; rating++ {
		key := strconv.Itoa(rating)
		if _, ok := s.RatingDistribution[key]; !ok {
			s.RatingDistribution[key] = 0
		}
	}
}

func normalizeThemes(themes []models.Theme) []models.Theme {
	if themes == nil {
		return []models.Theme{}
	}
	for i := range themes {
		if themes[i].Severity == "" {
			themes[i].Severity = defaultSeverity
		}
	}
	return themes
}

func normalizeIssue(issue *models.Issue) {
	if issue.Severity == "" {
		issue.Severity = defaultSeverity
	}
	if issue.AffectedLocations == nil {
		issue.AffectedLocations = []string{}
	}
}

func normalizeComparison(c *models.LocationComparison) {
	if c.Sentiment == "" {
		c.Sentiment = defaultSentiment
	}
	if c.Strengths == nil {
		c.Strengths = []string{}
	}
	if c.Weaknesses == nil {
		c.Weaknesses = []string{}
	}
}

func normalizeTrends(t *models.Trends) {
	if t.Direction == "" {
		t.Direction = defaultDirection
	}
	if t.EmergingIssues == nil {
		t.EmergingIssues = []string{}
	}
	if t.ResolvedIssues == nil {
		t.ResolvedIssues = []string{}
	}
}
