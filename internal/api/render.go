package api

import (
	"fmt"
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// RenderText renders an insights response as a human-readable report with
// the same fields as the structured payload.
func RenderText(resp *models.InsightsResponse) string {
	var b strings.Builder

	if s := resp.Data.Summary; s != nil {
		b.WriteString("REVIEW SUMMARY\n")
		if s.ExecutiveSummary != "" {
			b.WriteString(s.ExecutiveSummary + "\n")
		}
		fmt.Fprintf(&b, "Average rating: %.2f (%s overall)\n", s.AverageRating, s.OverallSentiment)
		fmt.Fprintf(&b, "Sentiment: %d%% positive, %d%% neutral, %d%% negative\n",
			s.SentimentDistribution.Positive, s.SentimentDistribution.Neutral, s.SentimentDistribution.Negative)
		b.WriteString("Ratings:")
		for rating := 5; rating >= 1; rating-- {
			fmt.Fprintf(&b, " %d★=%d", rating, s.RatingDistribution[fmt.Sprint(rating)])
		}
		b.WriteString("\n")
	}

	if t := resp.Data.Themes; t != nil {
		b.WriteString("\nTHEMES\n")
		renderThemes(&b, "Positive", t.Positive)
		renderThemes(&b, "Negative", t.Negative)
	}

	if len(resp.Data.Issues) > 0 {
		b.WriteString("\nISSUES\n")
		for _, issue := range resp.Data.Issues {
			fmt.Fprintf(&b, "- [%s] %s (%d mentions)", issue.Severity, issue.Category, issue.Frequency)
			if issue.Description != "" {
				b.WriteString(": " + issue.Description)
			}
			b.WriteString("\n")
			if issue.SuggestedAction != "" {
				fmt.Fprintf(&b, "  Suggested action: %s\n", issue.SuggestedAction)
			}
		}
	}

	if len(resp.Data.LocationComparison) > 0 {
		b.WriteString("\nLOCATION COMPARISON\n")
		for _, loc := range resp.Data.LocationComparison {
			name := loc.LocationName
			if name == "" {
				name = loc.StoreID
			}
			fmt.Fprintf(&b, "- %s: %.2f avg over %d reviews (%s)\n",
				name, loc.AverageRating, loc.ReviewCount, loc.Sentiment)
			if len(loc.Strengths) > 0 {
				fmt.Fprintf(&b, "  Strengths: %s\n", strings.Join(loc.Strengths, ", "))
			}
			if len(loc.Weaknesses) > 0 {
				fmt.Fprintf(&b, "  Weaknesses: %s\n", strings.Join(loc.Weaknesses, ", "))
			}
		}
	}

	if t := resp.Data.Trends; t != nil {
		b.WriteString("\nTRENDS\n")
		fmt.Fprintf(&b, "Direction: %s\n", t.Direction)
		if t.PreviousPeriod.Period != "" || t.PreviousPeriod.ReviewCount > 0 {
			fmt.Fprintf(&b, "Previous period (%s): %.2f avg over %d reviews\n",
				t.PreviousPeriod.Period, t.PreviousPeriod.AverageRating, t.PreviousPeriod.ReviewCount)
		}
		if t.CurrentPeriod.Period != "" || t.CurrentPeriod.ReviewCount > 0 {
			fmt.Fprintf(&b, "Current period (%s): %.2f avg over %d reviews\n",
				t.CurrentPeriod.Period, t.CurrentPeriod.AverageRating, t.CurrentPeriod.ReviewCount)
		}
		if len(t.EmergingIssues) > 0 {
			fmt.Fprintf(&b, "Emerging issues: %s\n", strings.Join(t.EmergingIssues, ", "))
		}
		if len(t.ResolvedIssues) > 0 {
			fmt.Fprintf(&b, "Resolved issues: %s\n", strings.Join(t.ResolvedIssues, ", "))
		}
	}

	m := resp.Metadata
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "Analyzed %d of %d reviews across %d locations (method: %s)\n",
		m.AnalyzedReviewCount, m.TotalReviewCount, m.LocationCount, m.AnalysisMethod)
	if m.SamplingNote != "" {
		b.WriteString(m.SamplingNote + "\n")
	}
	if !m.Complete {
		b.WriteString("Note: this analysis is partial; some data or batches failed.\n")
	}
	for _, e := range m.Errors {
		fmt.Fprintf(&b, "Warning: %s\n", e)
	}
	return b.String()
}

func renderThemes(b *strings.Builder, label string, themes []models.Theme) {
	if len(themes) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, theme := range themes {
		fmt.Fprintf(b, "- %s (%d mentions, %s)", theme.Theme, theme.Frequency, theme.Severity)
		if theme.ExampleQuote != "" {
			fmt.Fprintf(b, " e.g. %q", theme.ExampleQuote)
		}
		b.WriteString("\n")
	}
}
