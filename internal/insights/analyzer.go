// Package insights implements the review insights engine: the pipeline that
// turns a sanitized review set into a structured analytical summary under a
// bounded token budget, with a deterministic statistical fallback for when
// the external text-generation capability is unavailable or unreliable.
package insights

import (
	"context"
	"fmt"
	"log"

	"github.com/zombar/reviewinsights/internal/models"
)

// Capability is the contract of the external text-generation collaborator.
// Implementations are expected to be unreliable; every method may fail and
// Available may report false.
type Capability interface {
	Available(ctx context.Context) bool
	AnalyzeReviews(ctx context.Context, reviews []models.SanitizedReview, analysisType string, themes []string, maxTokens int) (string, error)
	MergeResults(ctx context.Context, partials []models.InsightResult, analysisType string) (string, error)
}

// Analyzer runs the AI analysis path for one batch of reviews
type Analyzer struct {
	capability Capability
	maxTokens  int
}

// NewAnalyzer creates an analyzer backed by the given capability. A nil
// capability is valid and reports unavailable, forcing the statistical path.
func NewAnalyzer(capability Capability, maxTokens int) *Analyzer {
	return &Analyzer{capability: capability, maxTokens: maxTokens}
}

// Available reports whether the AI path can be attempted at all
func (a *Analyzer) Available(ctx context.Context) bool {
	return a.capability != nil && a.capability.Available(ctx)
}

// AnalyzeBatch invokes the capability for one batch and validates its
// output into the canonical shape. Unlike the statistical path this can
// fail; the orchestrator accounts failures against its threshold.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, reviews []models.SanitizedReview, analysisType string, themes []string) (models.InsightResult, error) {
	if a.capability == nil {
		return models.InsightResult{}, fmt.Errorf("text-generation capability not configured")
	}

	text, err := a.capability.AnalyzeReviews(ctx, reviews, analysisType, themes, a.maxTokens)
	if err != nil {
		return models.InsightResult{}, fmt.Errorf("capability invocation failed: %w", err)
	}

	result, err := ParseInsight(text, analysisType)
	if err != nil {
		log.Printf("insights: batch response rejected: %v", err)
		return models.InsightResult{}, err
	}

	return Normalize(result, analysisType), nil
}

// Merge combines partial per-batch results, preferring a capability merge
// call and falling back to the pure manual merge. The returned flag reports
// whether the capability path was used.
func (a *Analyzer) Merge(ctx context.Context, partials []models.InsightResult, analysisType string) (models.InsightResult, bool) {
	if a.capability != nil {
		text, err := a.capability.MergeResults(ctx, partials, analysisType)
		if err == nil {
			merged, perr := ParseInsight(text, analysisType)
			if perr == nil {
				return Normalize(merged, analysisType), true
			}
			log.Printf("insights: merge response rejected, using manual merge: %v", perr)
		} else {
			log.Printf("insights: capability merge failed, using manual merge: %v", err)
		}
	}
	return Normalize(ManualMerge(partials, analysisType), analysisType), false
}
