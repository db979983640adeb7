package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zombar/reviewinsights/internal/models"
)

func TestSerializeReviewsOneLinePerReview(t *testing.T) {
	reviews := []models.SanitizedReview{
		{ID: "review-0", StoreID: "store-1", Rating: 5, Text: "great coffee"},
		{ID: "review-1", StoreID: "store-1", Rating: 2, Text: "cold food"},
		{ID: "review-2", StoreID: "store-2", Rating: 3},
	}

	serialized, err := serializeReviews(reviews)
	if err != nil {
		t.Fatalf("serializeReviews failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(serialized, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		var decoded models.SanitizedReview
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
		if decoded.ID != reviews[i].ID {
			t.Errorf("line %d id = %q, want %q", i, decoded.ID, reviews[i].ID)
		}
	}
}

func TestAnalysisInstructionsSelectShape(t *testing.T) {
	tests := []struct {
		analysisType string
		wantKey      string
	}{
		{models.AnalysisSummary, `"summary"`},
		{models.AnalysisIssues, `"issues"`},
		{models.AnalysisComparison, `"locationComparison"`},
		{models.AnalysisTrends, `"trends"`},
		{models.AnalysisThemes, `"themes"`},
	}
	for _, tt := range tests {
		got := analysisInstructions(tt.analysisType, nil)
		if !strings.Contains(got, tt.wantKey) {
			t.Errorf("instructions for %s do not mention %s", tt.analysisType, tt.wantKey)
		}
	}
}

func TestAnalysisInstructionsThemeFocus(t *testing.T) {
	got := analysisInstructions(models.AnalysisThemes, []string{"service", "cleanliness"})
	if !strings.Contains(got, "service, cleanliness") {
		t.Errorf("theme focus missing from instructions:\n%s", got)
	}
	plain := analysisInstructions(models.AnalysisThemes, nil)
	if strings.Contains(plain, "Focus on these themes") {
		t.Error("focus sentence present without requested themes")
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New("", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("model = %q, want %q", c.model, DefaultModel)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}
}
