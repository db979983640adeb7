// Package sampling decides whether a review dataset is safe to analyze and
// reduces oversized datasets to a bounded working set.
package sampling

import (
	"fmt"

	"github.com/zombar/reviewinsights/internal/models"
)

// Dataset size thresholds. Every analyzed review costs tokens against the
// external capability, so large datasets need either explicit confirmation
// or a sampling strategy before any call is made.
const (
	ImmediateThreshold     = 200   // at or below: proceed without asking
	LargeDatasetThreshold  = 1000  // above: warning escalates to a strong recommendation
	ForceSamplingThreshold = 10000 // above: confirmation alone is not accepted

	// TokensPerReview is the fixed per-review constant for the linear cost
	// estimate shown in gate warnings.
	TokensPerReview = 50
)

// Disposition is the gate's decision for a dataset
type Disposition int

const (
	Proceed Disposition = iota
	RequireConfirmation
	RequireSampling
)

// GateDecision is the full output of evaluating the dataset gate
type GateDecision struct {
	Disposition      Disposition
	TotalReviewCount int
	EstimatedTokens  int
	Message          string
	Options          []models.ConfirmationOption
}

// EstimateTokens returns the linear token-cost estimate for analyzing n reviews
func EstimateTokens(n int) int {
	return n * TokensPerReview
}

// Evaluate is pure decision logic over counts and flags; it performs no I/O.
// A non-full strategy always proceeds: sampling bounds the working set, so
// the raw dataset size stops mattering.
func Evaluate(totalReviewCount int, strategy string, skipConfirmation bool) GateDecision {
	decision := GateDecision{
		Disposition:      Proceed,
		TotalReviewCount: totalReviewCount,
		EstimatedTokens:  EstimateTokens(totalReviewCount),
	}

	if strategy != models.SamplingFull && strategy != "" {
		return decision
	}
	if totalReviewCount <= ImmediateThreshold {
		return decision
	}

	switchOptions := []models.ConfirmationOption{
		{
			Action:      "switch_strategy",
			Strategy:    models.SamplingRepresentative,
			Description: "Analyze a stratified sample that mirrors the rating distribution",
		},
		{
			Action:      "switch_strategy",
			Strategy:    models.SamplingRecentWeighted,
			Description: "Analyze a sample biased toward the most recent reviews",
		},
	}

	if totalReviewCount > ForceSamplingThreshold {
		decision.Disposition = RequireSampling
		decision.Message = fmt.Sprintf(
			"Dataset of %d reviews exceeds the %d review limit for full analysis; a sampling strategy is required.",
			totalReviewCount, ForceSamplingThreshold)
		decision.Options = switchOptions
		return decision
	}

	if skipConfirmation {
		return decision
	}

	decision.Disposition = RequireConfirmation
	note := ""
	if totalReviewCount > LargeDatasetThreshold {
		note = " Sampling is strongly recommended at this size."
	}
	decision.Message = fmt.Sprintf(
		"Full analysis of %d reviews will cost an estimated %d tokens.%s Confirm to proceed or switch to a sampling strategy.",
		totalReviewCount, decision.EstimatedTokens, note)
	decision.Options = append([]models.ConfirmationOption{
		{
			Action:      "confirm",
			Description: "Proceed with full analysis at the estimated token cost",
		},
	}, switchOptions...)
	return decision
}
