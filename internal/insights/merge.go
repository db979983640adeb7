package insights

import (
	"sort"
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// maxMergedEntries caps merged theme and issue lists
const maxMergedEntries = 10

// ManualMerge deterministically combines per-batch results without any
// external call. Numeric fields are re-aggregated weighted by each batch's
// review count, theme and issue lists merge by exact name with frequencies
// summed, and the sentiment distribution is recomputed from the merged
// rating distribution rather than averaged across batches.
func ManualMerge(partials []models.InsightResult, analysisType string) models.InsightResult {
	if len(partials) == 0 {
		return models.InsightResult{}
	}
	if len(partials) == 1 {
		return partials[0]
	}

	merged := models.InsightResult{}
	merged.Summary = mergeSummaries(partials)
	merged.Themes = mergeThemes(partials)
	merged.Issues = mergeIssues(partials)
	merged.LocationComparison = mergeComparisons(partials)
	merged.Trends = mergeTrends(partials)
	return merged
}

func mergeSummaries(partials []models.InsightResult) *models.Summary {
	var summaries []*models.Summary
	for _, p := range partials {
		if p.Summary != nil {
			summaries = append(summaries, p.Summary)
		}
	}
	if len(summaries) == 0 {
		return nil
	}

	merged := &models.Summary{
		RatingDistribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}

	totalReviews := 0
	weightedSum := 0.0
	var texts []string
	for _, s := range summaries {
		count := 0
		for key, c := range s.RatingDistribution {
			merged.RatingDistribution[key] += c
			count += c
		}
		weightedSum += s.AverageRating * float64(count)
		totalReviews += count
		if s.ExecutiveSummary != "" {
			texts = append(texts, s.ExecutiveSummary)
		}
	}
	if totalReviews > 0 {
		merged.AverageRating = weightedSum / float64(totalReviews)
	}

	// Sentiment is recomputed from the merged rating histogram, never by
	// averaging the batches' percentages.
	positive := merged.RatingDistribution["4"] + merged.RatingDistribution["5"]
	neutral := merged.RatingDistribution["3"]
	negative := merged.RatingDistribution["1"] + merged.RatingDistribution["2"]
	merged.SentimentDistribution = percentages(positive, neutral, negative)
	merged.OverallSentiment = dominantSentiment(merged.SentimentDistribution)
	merged.ExecutiveSummary = strings.Join(texts, " ")
	return merged
}

func mergeThemes(partials []models.InsightResult) *models.Themes {
	var any bool
	var positive, negative []models.Theme
	for _, p := range partials {
		if p.Themes == nil {
			continue
		}
		any = true
		positive = append(positive, p.Themes.Positive...)
		negative = append(negative, p.Themes.Negative...)
	}
	if !any {
		return nil
	}
	return &models.Themes{
		Positive: combineThemeList(positive),
		Negative: combineThemeList(negative),
	}
}

// combineThemeList merges themes by exact name, summing frequencies and
// keeping the first-seen severity and example quote, truncated to the top
// entries by frequency.
func combineThemeList(themes []models.Theme) []models.Theme {
	byName := make(map[string]*models.Theme)
	var order []string
	for _, t := range themes {
		key := strings.ToLower(t.Theme)
		if existing, ok := byName[key]; ok {
			existing.Frequency += t.Frequency
			if existing.ExampleQuote == "" {
				existing.ExampleQuote = t.ExampleQuote
			}
			continue
		}
		copied := t
		byName[key] = &copied
		order = append(order, key)
	}

	combined := make([]models.Theme, 0, len(order))
	for _, key := range order {
		combined = append(combined, *byName[key])
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Frequency > combined[j].Frequency
	})
	if len(combined) > maxMergedEntries {
		combined = combined[:maxMergedEntries]
	}
	return combined
}

func mergeIssues(partials []models.InsightResult) []models.Issue {
	var collected []models.Issue
	var any bool
	for _, p := range partials {
		if p.Issues != nil {
			any = true
			collected = append(collected, p.Issues...)
		}
	}
	if !any {
		return nil
	}

	byCategory := make(map[string]*models.Issue)
	var order []string
	for _, issue := range collected {
		key := strings.ToLower(issue.Category)
		if existing, ok := byCategory[key]; ok {
			existing.Frequency += issue.Frequency
			existing.AffectedLocations = unionStrings(existing.AffectedLocations, issue.AffectedLocations)
			continue
		}
		copied := issue
		byCategory[key] = &copied
		order = append(order, key)
	}

	merged := make([]models.Issue, 0, len(order))
	for _, key := range order {
		merged = append(merged, *byCategory[key])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Frequency > merged[j].Frequency
	})
	if len(merged) > maxMergedEntries {
		merged = merged[:maxMergedEntries]
	}
	return merged
}

// mergeComparisons concatenates location rollups. Batch splitting groups a
// store's reviews into a single batch, so batches carry disjoint stores and
// no dedup is needed here.
func mergeComparisons(partials []models.InsightResult) []models.LocationComparison {
	var merged []models.LocationComparison
	var any bool
	for _, p := range partials {
		if p.LocationComparison != nil {
			any = true
			merged = append(merged, p.LocationComparison...)
		}
	}
	if !any {
		return nil
	}
	return merged
}

func mergeTrends(partials []models.InsightResult) *models.Trends {
	var all []*models.Trends
	for _, p := range partials {
		if p.Trends != nil {
			all = append(all, p.Trends)
		}
	}
	if len(all) == 0 {
		return nil
	}

	merged := &models.Trends{
		EmergingIssues: []string{},
		ResolvedIssues: []string{},
	}
	directions := map[string]int{}
	for _, t := range all {
		directions[t.Direction]++
		merged.EmergingIssues = unionStrings(merged.EmergingIssues, t.EmergingIssues)
		merged.ResolvedIssues = unionStrings(merged.ResolvedIssues, t.ResolvedIssues)
		merged.PreviousPeriod = mergePeriod(merged.PreviousPeriod, t.PreviousPeriod)
		merged.CurrentPeriod = mergePeriod(merged.CurrentPeriod, t.CurrentPeriod)
	}

	// Majority direction wins; declining outranks improving on a tie so
	// the merged trend never understates a problem.
	best, bestCount := defaultDirection, 0
	for _, direction := range []string{"declining", "stable", "improving"} {
		if directions[direction] > bestCount {
			best, bestCount = direction, directions[direction]
		}
	}
	merged.Direction = best
	return merged
}

func mergePeriod(acc, next models.PeriodStats) models.PeriodStats {
	if next.ReviewCount == 0 && next.Period == "" {
		return acc
	}
	if acc.ReviewCount == 0 && acc.Period == "" {
		return next
	}
	total := acc.ReviewCount + next.ReviewCount
	merged := models.PeriodStats{Period: acc.Period, ReviewCount: total}
	if total > 0 {
		merged.AverageRating = (acc.AverageRating*float64(acc.ReviewCount) +
			next.AverageRating*float64(next.ReviewCount)) / float64(total)
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
