package insights

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zombar/reviewinsights/internal/models"
)

// Rating-to-sentiment mapping for the statistical path: >=4 positive,
// ==3 neutral, <=2 negative.
func ratingSentiment(rating int) string {
	switch {
	case rating >= 4:
		return "positive"
	case rating == 3:
		return "neutral"
	default:
		return "negative"
	}
}

// AnalyzeStatistical is the deterministic floor of the pipeline. It computes
// insights from the numeric rating and date fields only, with no text
// understanding, and it cannot fail: any review set, including an empty one,
// produces a usable result.
func AnalyzeStatistical(reviews []models.SanitizedReview, analysisType string) models.InsightResult {
	result := models.InsightResult{
		Summary: statisticalSummary(reviews),
	}
	if analysisType == models.AnalysisComparison {
		result.LocationComparison = statisticalComparison(reviews)
	}
	return Normalize(result, analysisType)
}

func statisticalSummary(reviews []models.SanitizedReview) *models.Summary {
	summary := &models.Summary{
		RatingDistribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}

	if len(reviews) == 0 {
		summary.ExecutiveSummary = "No reviews in the selected period."
		summary.OverallSentiment = "neutral"
		return summary
	}

	total := 0
	counts := map[string]int{"positive": 0, "neutral": 0, "negative": 0}
	for _, r := range reviews {
		total += r.Rating
		key := strconv.Itoa(clampRating(r.Rating))
		summary.RatingDistribution[key]++
		counts[ratingSentiment(r.Rating)]++
	}

	summary.AverageRating = float64(total) / float64(len(reviews))
	summary.SentimentDistribution = percentages(counts["positive"], counts["neutral"], counts["negative"])
	summary.OverallSentiment = dominantSentiment(summary.SentimentDistribution)
	summary.ExecutiveSummary = fmt.Sprintf(
		"Statistical summary of %d reviews: average rating %.2f, %d%% positive, %d%% neutral, %d%% negative.",
		len(reviews), summary.AverageRating,
		summary.SentimentDistribution.Positive,
		summary.SentimentDistribution.Neutral,
		summary.SentimentDistribution.Negative)
	return summary
}

func statisticalComparison(reviews []models.SanitizedReview) []models.LocationComparison {
	byStore := make(map[string][]models.SanitizedReview)
	for _, r := range reviews {
		byStore[r.StoreID] = append(byStore[r.StoreID], r)
	}

	storeIDs := make([]string, 0, len(byStore))
	for id := range byStore {
		storeIDs = append(storeIDs, id)
	}
	sort.Strings(storeIDs)

	comparisons := make([]models.LocationComparison, 0, len(storeIDs))
	for _, id := range storeIDs {
		group := byStore[id]
		total := 0
		counts := map[string]int{"positive": 0, "neutral": 0, "negative": 0}
		for _, r := range group {
			total += r.Rating
			counts[ratingSentiment(r.Rating)]++
		}
		dist := percentages(counts["positive"], counts["neutral"], counts["negative"])
		comparisons = append(comparisons, models.LocationComparison{
			StoreID:       id,
			AverageRating: float64(total) / float64(len(group)),
			ReviewCount:   len(group),
			Sentiment:     dominantSentiment(dist),
			Strengths:     []string{},
			Weaknesses:    []string{},
		})
	}
	return comparisons
}

// percentages converts sentiment counts to integer percentages that sum to
// exactly 100, assigning rounding remainders to the largest buckets first.
func percentages(positive, neutral, negative int) models.SentimentDistribution {
	n := positive + neutral + negative
	if n == 0 {
		return models.SentimentDistribution{}
	}

	type bucket struct {
		name      string
		count     int
		pct       int
		remainder int
	}
	buckets := []bucket{
		{name: "positive", count: positive},
		{name: "neutral", count: neutral},
		{name: "negative", count: negative},
	}

	assigned := 0
	for i := range buckets {
		buckets[i].pct = buckets[i].count * 100 / n
		buckets[i].remainder = buckets[i].count * 100 % n
		assigned += buckets[i].pct
	}

	// Largest remainder first; bucket order breaks ties deterministically.
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool {
		return buckets[order[a]].remainder > buckets[order[b]].remainder
	})
	for i := 0; assigned < 100; i++ {
		buckets[order[i%3]].pct++
		assigned++
	}

	return models.SentimentDistribution{
		Positive: buckets[0].pct,
		Neutral:  buckets[1].pct,
		Negative: buckets[2].pct,
	}
}

func dominantSentiment(d models.SentimentDistribution) string {
	if d.Positive >= d.Neutral && d.Positive >= d.Negative && d.Positive > 0 {
		return "positive"
	}
	if d.Negative > d.Neutral {
		return "negative"
	}
	return "neutral"
}

func clampRating(rating int) int {
	if rating < 1 {
		return 1
	}
	if rating > 5 {
		return 5
	}
	return rating
}
