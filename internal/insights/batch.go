package insights

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/zombar/reviewinsights/internal/models"
)

// Batch orchestration limits
const (
	DefaultBatchSize = 300
	MaxBatches       = 20
	FailureThreshold = 0.5
)

// Orchestrator splits a review set into batches, runs the AI analyzer over
// each, and merges the partial results. Batches run sequentially; the
// capability is a shared constrained resource and parallel calls only make
// its failure modes worse.
type Orchestrator struct {
	analyzer  *Analyzer
	batchSize int
}

// NewOrchestrator creates an orchestrator with the given batch size, or the
// default when size is not positive.
func NewOrchestrator(analyzer *Analyzer, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{analyzer: analyzer, batchSize: batchSize}
}

// Analyze runs the full batched AI analysis. Terminal conditions return an
// error: the batch ceiling exceeded before any call is made, the running
// failure rate crossing the threshold mid-run, or every batch failing.
func (o *Orchestrator) Analyze(ctx context.Context, reviews []models.SanitizedReview, analysisType string, themes []string) (models.BatchResult, error) {
	batches := o.split(reviews, analysisType)

	if len(batches) > MaxBatches {
		return models.BatchResult{}, fmt.Errorf(
			"dataset requires %d batches, exceeding the maximum of %d; narrow the date range or use a sampling strategy",
			len(batches), MaxBatches)
	}

	var partials []models.InsightResult
	var failures []string
	attempted := 0
	for i, batch := range batches {
		attempted++
		result, err := o.analyzer.AnalyzeBatch(ctx, batch, analysisType, themes)
		if err != nil {
			log.Printf("insights: batch %d/%d failed: %v", i+1, len(batches), err)
			failures = append(failures, fmt.Sprintf("batch %d: %v", i+1, err))

			// A single failure is tolerable noise; two data points are the
			// minimum before the rate means anything.
			if attempted >= 2 && float64(len(failures))/float64(attempted) > FailureThreshold {
				return models.BatchResult{}, fmt.Errorf(
					"failure rate exceeds threshold: %d of %d batches failed", len(failures), attempted)
			}
			continue
		}
		partials = append(partials, result)
	}

	if len(partials) == 0 {
		return models.BatchResult{}, fmt.Errorf(
			"all %d batches failed: %s", attempted, strings.Join(failures, "; "))
	}

	merged := partials[0]
	aiMerged := true
	if len(partials) > 1 {
		merged, aiMerged = o.analyzer.Merge(ctx, partials, analysisType)
	}

	return models.BatchResult{
		Data:         merged,
		BatchCount:   attempted,
		TotalReviews: len(reviews),
		Complete:     len(failures) == 0 && aiMerged,
		Errors:       failures,
	}, nil
}

// split chunks reviews into batches of at most batchSize. Comparison
// analysis instead packs whole store groups, because the merge step
// concatenates per-location rollups and a store straddling two batches
// would appear twice with fragmented numbers.
func (o *Orchestrator) split(reviews []models.SanitizedReview, analysisType string) [][]models.SanitizedReview {
	if len(reviews) == 0 {
		return nil
	}
	if analysisType == models.AnalysisComparison {
		return o.splitByStore(reviews)
	}

	var batches [][]models.SanitizedReview
	for start := 0; start < len(reviews); start += o.batchSize {
		end := start + o.batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batches = append(batches, reviews[start:end])
	}
	return batches
}

// splitByStore groups reviews by store and packs whole groups into batches,
// closing the current batch when the next group would push it past
// batchSize. A single store larger than batchSize becomes one oversized
// batch; it still cannot be split without fragmenting its rollup.
func (o *Orchestrator) splitByStore(reviews []models.SanitizedReview) [][]models.SanitizedReview {
	ordered := make([]models.SanitizedReview, len(reviews))
	copy(ordered, reviews)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StoreID < ordered[j].StoreID
	})

	var batches [][]models.SanitizedReview
	var current []models.SanitizedReview
	start := 0
	for start < len(ordered) {
		end := start + 1
		for end < len(ordered) && ordered[end].StoreID == ordered[start].StoreID {
			end++
		}
		group := ordered[start:end]
		if len(current) > 0 && len(current)+len(group) > o.batchSize {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, group...)
		start = end
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
