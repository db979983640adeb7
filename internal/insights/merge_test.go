package insights

import (
	"testing"

	"github.com/zombar/reviewinsights/internal/models"
)

func TestManualMergeSentimentRecomputedFromRatings(t *testing.T) {
	// Two batches with skewed per-batch percentages. Averaging the
	// percentages would give 50/0/50; recomputing from the combined
	// histogram must reflect the unequal batch sizes instead.
	a := models.InsightResult{Summary: &models.Summary{
		AverageRating:         5,
		SentimentDistribution: models.SentimentDistribution{Positive: 100},
		RatingDistribution:    map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 90},
	}}
	b := models.InsightResult{Summary: &models.Summary{
		AverageRating:         1,
		SentimentDistribution: models.SentimentDistribution{Negative: 100},
		RatingDistribution:    map[string]int{"1": 10, "2": 0, "3": 0, "4": 0, "5": 0},
	}}

	merged := ManualMerge([]models.InsightResult{a, b}, models.AnalysisSummary)
	if merged.Summary == nil {
		t.Fatal("merged summary missing")
	}

	d := merged.Summary.SentimentDistribution
	if d.Positive != 90 || d.Negative != 10 {
		t.Errorf("sentiment = %+v, want 90/0/10 recomputed from ratings", d)
	}
	if merged.Summary.AverageRating != 4.6 {
		t.Errorf("average rating = %v, want weighted 4.6", merged.Summary.AverageRating)
	}
	if merged.Summary.RatingDistribution["5"] != 90 || merged.Summary.RatingDistribution["1"] != 10 {
		t.Errorf("rating distribution not summed: %+v", merged.Summary.RatingDistribution)
	}
}

func TestManualMergeThemesByName(t *testing.T) {
	a := models.InsightResult{Themes: &models.Themes{
		Negative: []models.Theme{
			{Theme: "Slow Service", Frequency: 5, Severity: "high", ExampleQuote: "waited an hour"},
			{Theme: "noise", Frequency: 2},
		},
	}}
	b := models.InsightResult{Themes: &models.Themes{
		Negative: []models.Theme{
			{Theme: "slow service", Frequency: 4},
		},
	}}

	merged := ManualMerge([]models.InsightResult{a, b}, models.AnalysisThemes)
	if merged.Themes == nil {
		t.Fatal("merged themes missing")
	}
	if len(merged.Themes.Negative) != 2 {
		t.Fatalf("got %d negative themes, want 2: %+v", len(merged.Themes.Negative), merged.Themes.Negative)
	}

	top := merged.Themes.Negative[0]
	if top.Theme != "Slow Service" || top.Frequency != 9 {
		t.Errorf("top theme = %+v, want Slow Service with frequency 9", top)
	}
	if top.Severity != "high" || top.ExampleQuote != "waited an hour" {
		t.Errorf("first-seen detail lost: %+v", top)
	}
}

func TestManualMergeTruncatesToTopTen(t *testing.T) {
	var themes []models.Theme
	for i := 0; i < 15; i++ {
		themes = append(themes, models.Theme{Theme: string(rune('a' + i)), Frequency: i + 1})
	}
	merged := ManualMerge([]models.InsightResult{
		{Themes: &models.Themes{Positive: themes[:8]}},
		{Themes: &models.Themes{Positive: themes[8:]}},
	}, models.AnalysisThemes)

	if len(merged.Themes.Positive) != 10 {
		t.Fatalf("got %d themes, want 10", len(merged.Themes.Positive))
	}
	if merged.Themes.Positive[0].Frequency != 15 {
		t.Errorf("top frequency = %d, want 15", merged.Themes.Positive[0].Frequency)
	}
}

func TestManualMergeIssuesByCategory(t *testing.T) {
	a := models.InsightResult{Issues: []models.Issue{
		{Category: "cleanliness", Frequency: 3, AffectedLocations: []string{"store-1"}},
	}}
	b := models.InsightResult{Issues: []models.Issue{
		{Category: "Cleanliness", Frequency: 2, AffectedLocations: []string{"store-1", "store-2"}},
		{Category: "pricing", Frequency: 1},
	}}

	merged := ManualMerge([]models.InsightResult{a, b}, models.AnalysisIssues)
	if len(merged.Issues) != 2 {
		t.Fatalf("got %d issues, want 2: %+v", len(merged.Issues), merged.Issues)
	}
	top := merged.Issues[0]
	if top.Frequency != 5 {
		t.Errorf("merged frequency = %d, want 5", top.Frequency)
	}
	if len(top.AffectedLocations) != 2 {
		t.Errorf("affected locations = %v, want deduplicated union of 2", top.AffectedLocations)
	}
}

func TestManualMergeComparisonsConcatenated(t *testing.T) {
	a := models.InsightResult{LocationComparison: []models.LocationComparison{
		{StoreID: "store-1", AverageRating: 4.0, ReviewCount: 10},
	}}
	b := models.InsightResult{LocationComparison: []models.LocationComparison{
		{StoreID: "store-2", AverageRating: 3.0, ReviewCount: 5},
		{StoreID: "store-3", AverageRating: 4.5, ReviewCount: 2},
	}}

	merged := ManualMerge([]models.InsightResult{a, b}, models.AnalysisComparison)
	if len(merged.LocationComparison) != 3 {
		t.Errorf("got %d rollups, want 3 concatenated", len(merged.LocationComparison))
	}
}

func TestManualMergeSingleBatchIsIdentity(t *testing.T) {
	single := models.InsightResult{Summary: &models.Summary{AverageRating: 4.2}}
	merged := ManualMerge([]models.InsightResult{single}, models.AnalysisSummary)
	if merged.Summary.AverageRating != 4.2 {
		t.Errorf("single-batch merge changed the result: %+v", merged)
	}
}
