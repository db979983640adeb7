package models

import "time"

// Analysis types supported by the insights engine
const (
	AnalysisSummary    = "summary"
	AnalysisIssues     = "issues"
	AnalysisComparison = "comparison"
	AnalysisTrends     = "trends"
	AnalysisThemes     = "themes"
)

// Sampling strategies for reducing large review sets
const (
	SamplingFull           = "full"
	SamplingRepresentative = "representative"
	SamplingRecentWeighted = "recent_weighted"
)

// ValidAnalysisType reports whether t names a known analysis type
func ValidAnalysisType(t string) bool {
	switch t {
	case AnalysisSummary, AnalysisIssues, AnalysisComparison, AnalysisTrends, AnalysisThemes:
		return true
	}
	return false
}

// ValidSamplingStrategy reports whether s names a known sampling strategy
func ValidSamplingStrategy(s string) bool {
	switch s {
	case SamplingFull, SamplingRepresentative, SamplingRecentWeighted:
		return true
	}
	return false
}

// RawReview is a customer review as returned by the upstream API
type RawReview struct {
	ID               string `json:"id,omitempty"`
	StoreID          string `json:"storeId"`
	Rating           int    `json:"rating"` // 1..5
	Comment          string `json:"comment,omitempty"`
	Date             string `json:"date,omitempty"` // ISO date
	HasOwnerResponse bool   `json:"hasOwnerResponse"`
}

// SanitizedReview is a RawReview with PII redacted from the comment text.
// IDs are always present (generated as review-{index} when the upstream
// omitted one).
type SanitizedReview struct {
	ID               string `json:"id"`
	StoreID          string `json:"storeId"`
	Rating           int    `json:"rating"`
	Text             string `json:"text,omitempty"`
	Date             string `json:"date,omitempty"`
	HasOwnerResponse bool   `json:"hasOwnerResponse"`
}

// SentimentDistribution holds percentages summing to 100
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Summary is the executive summary section of an insight result
type Summary struct {
	ExecutiveSummary      string                `json:"executiveSummary"`
	OverallSentiment      string                `json:"overallSentiment"` // positive, neutral, negative
	AverageRating         float64               `json:"averageRating"`
	SentimentDistribution SentimentDistribution `json:"sentimentDistribution"`
	RatingDistribution    map[string]int        `json:"ratingDistribution"` // keys "1".."5"
}

// Theme is a recurring topic extracted from review text
type Theme struct {
	Theme        string `json:"theme"`
	Frequency    int    `json:"frequency"`
	Severity     string `json:"severity,omitempty"` // high, medium, low
	ExampleQuote string `json:"exampleQuote,omitempty"`
}

// Themes groups extracted themes by polarity
type Themes struct {
	Positive []Theme `json:"positive"`
	Negative []Theme `json:"negative"`
}

// Issue is a problem surfaced across reviews
type Issue struct {
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	Severity          string   `json:"severity"` // high, medium, low
	Frequency         int      `json:"frequency"`
	AffectedLocations []string `json:"affectedLocations,omitempty"`
	SuggestedAction   string   `json:"suggestedAction,omitempty"`
}

// LocationComparison is a per-store rollup for cross-location analysis
type LocationComparison struct {
	StoreID       string   `json:"storeId"`
	LocationName  string   `json:"locationName,omitempty"`
	AverageRating float64  `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
	Sentiment     string   `json:"sentiment"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
}

// PeriodStats summarizes one time period for trend analysis
type PeriodStats struct {
	Period        string  `json:"period"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

// Trends captures period-over-period movement
type Trends struct {
	Direction      string      `json:"direction"` // improving, stable, declining
	PreviousPeriod PeriodStats `json:"previousPeriod"`
	CurrentPeriod  PeriodStats `json:"currentPeriod"`
	EmergingIssues []string    `json:"emergingIssues"`
	ResolvedIssues []string    `json:"resolvedIssues"`
}

// InsightResult is the canonical analysis output. Sections are optional at
// the type level; the normalizer fills whichever sections the requested
// analysis type demands so downstream formatting never branches on absence.
type InsightResult struct {
	Summary            *Summary             `json:"summary,omitempty"`
	Themes             *Themes              `json:"themes,omitempty"`
	Issues             []Issue              `json:"issues,omitempty"`
	LocationComparison []LocationComparison `json:"locationComparison,omitempty"`
	Trends             *Trends              `json:"trends,omitempty"`
}

// BatchResult is the outcome of orchestrating one analysis across batches
type BatchResult struct {
	Data         InsightResult `json:"data"`
	BatchCount   int           `json:"batchCount"`   // batches attempted, not merely successful
	TotalReviews int           `json:"totalReviews"` // pre-batching count
	Complete     bool          `json:"complete"`
	Errors       []string      `json:"errors,omitempty"`
}

// InsightsParams is the single operation exposed by the tool surface
type InsightsParams struct {
	StoreIDs         []string `json:"storeIds,omitempty"`
	From             string   `json:"from"`
	To               string   `json:"to"`
	AnalysisType     string   `json:"analysisType"`
	SamplingStrategy string   `json:"samplingStrategy,omitempty"`
	SkipConfirmation bool     `json:"skipConfirmation,omitempty"`
	Themes           []string `json:"themes,omitempty"`
	MinRating        int      `json:"minRating,omitempty"`
	MaxRating        int      `json:"maxRating,omitempty"`
	ForceRefresh     bool     `json:"forceRefresh,omitempty"`
	OutputFormat     string   `json:"outputFormat,omitempty"` // json, text
}

// InsightsMetadata describes how a result was produced so callers can
// distinguish exact AI analysis from best-effort fallback
type InsightsMetadata struct {
	LocationCount       int      `json:"locationCount"`
	TotalReviewCount    int      `json:"totalReviewCount"`
	AnalyzedReviewCount int      `json:"analyzedReviewCount"`
	AnalysisMethod      string   `json:"analysisMethod"` // ai, statistical
	SamplingNote        string   `json:"samplingNote,omitempty"`
	Complete            bool     `json:"complete"`
	Errors              []string `json:"errors,omitempty"`
	CacheHit            bool     `json:"cacheHit,omitempty"`
}

// InsightsResponse is the successful payload of the insights operation
type InsightsResponse struct {
	Data     InsightResult    `json:"data"`
	Metadata InsightsMetadata `json:"metadata"`
}

// ConfirmationOption is a machine-actionable remediation for a gated request
type ConfirmationOption struct {
	Action      string `json:"action"` // confirm, switch_strategy
	Strategy    string `json:"strategy,omitempty"`
	Description string `json:"description"`
}

// ConfirmationRequired is returned when the dataset gate blocks a request
type ConfirmationRequired struct {
	RequiresConfirmation bool                 `json:"requiresConfirmation"`
	TotalReviewCount     int                  `json:"totalReviewCount"`
	EstimatedTokens      int                  `json:"estimatedTokens"`
	Message              string               `json:"message"`
	Options              []ConfirmationOption `json:"options"`
}

// AnalysisRecord is a persisted completed analysis
type AnalysisRecord struct {
	ID          string           `json:"id"`
	Fingerprint string           `json:"fingerprint"`
	Params      InsightsParams   `json:"params"`
	Result      InsightResult    `json:"result"`
	Metadata    InsightsMetadata `json:"metadata"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
