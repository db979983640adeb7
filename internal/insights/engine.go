package insights

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/internal/sampling"
	"github.com/zombar/reviewinsights/internal/sanitize"
)

// DefaultSampleTarget bounds the working set produced by a non-full
// sampling strategy.
const DefaultSampleTarget = 1000

// ReviewFetcher is the upstream review source. FetchReviews returns one
// store's reviews for an inclusive ISO date range along with a completeness
// flag for partial pagination. ListStoreIDs resolves the account's stores
// when the caller names none.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, storeID, from, to string) ([]models.RawReview, bool, error)
	ListStoreIDs(ctx context.Context) ([]string, error)
}

// LocationNamer is implemented by fetchers that can resolve store IDs to
// display names, used to label comparison rollups.
type LocationNamer interface {
	LocationNames(ctx context.Context) map[string]string
}

// AnalysisStore persists completed analyses and serves them back by request
// fingerprint. Persistence is best effort; a store failure degrades history,
// not the response.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, record models.AnalysisRecord) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error)
}

// InputError marks a request rejected before any fetch or external call.
// These are never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// Engine is the full review insights pipeline: fetch, sanitize, gate,
// sample, analyze with fallback, cache, persist.
type Engine struct {
	fetcher      ReviewFetcher
	analyzer     *Analyzer
	orchestrator *Orchestrator
	cache        *ResultCache
	store        AnalysisStore
	accountID    string
	sampleTarget int
	metrics      *metrics.Metrics
}

// EngineConfig collects the engine's collaborators and tunables
type EngineConfig struct {
	Fetcher      ReviewFetcher
	Analyzer     *Analyzer
	Orchestrator *Orchestrator
	Cache        *ResultCache
	Store        AnalysisStore
	AccountID    string
	SampleTarget int
	Metrics      *metrics.Metrics
}

func NewEngine(cfg EngineConfig) *Engine {
	target := cfg.SampleTarget
	if target <= 0 {
		target = DefaultSampleTarget
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewResultCache(0, 0)
	}
	return &Engine{
		fetcher:      cfg.Fetcher,
		analyzer:     cfg.Analyzer,
		orchestrator: cfg.Orchestrator,
		cache:        cache,
		store:        cfg.Store,
		accountID:    cfg.AccountID,
		sampleTarget: target,
		metrics:      cfg.Metrics,
	}
}

// GenerateInsights runs one analysis request end to end. Exactly one of the
// three returns is meaningful: a response, a confirmation payload when the
// dataset gate blocks the request, or an error.
func (e *Engine) GenerateInsights(ctx context.Context, params models.InsightsParams) (*models.InsightsResponse, *models.ConfirmationRequired, error) {
	if err := validateParams(&params); err != nil {
		return nil, nil, err
	}

	fingerprint := Fingerprint(e.accountID, params)
	if !params.ForceRefresh {
		if cached, ok := e.cache.Get(fingerprint); ok {
			resp := cached
			resp.Metadata.CacheHit = true
			return &resp, nil, nil
		}
		if resp := e.lookupPersisted(ctx, fingerprint); resp != nil {
			return resp, nil, nil
		}
	}

	raw, fetchErrors, fetchComplete, locationCount, err := e.fetchAll(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	filtered := filterByRating(raw, params.MinRating, params.MaxRating)
	totalCount := len(filtered)

	decision := sampling.Evaluate(totalCount, params.SamplingStrategy, params.SkipConfirmation)
	if decision.Disposition != sampling.Proceed {
		return nil, &models.ConfirmationRequired{
			RequiresConfirmation: true,
			TotalReviewCount:     decision.TotalReviewCount,
			EstimatedTokens:      decision.EstimatedTokens,
			Message:              decision.Message,
			Options:              decision.Options,
		}, nil
	}

	reviews := sanitize.Reviews(filtered)
	samplingNote := ""
	if params.SamplingStrategy != "" && params.SamplingStrategy != models.SamplingFull {
		before := len(reviews)
		reviews = sampling.Sample(reviews, params.SamplingStrategy, e.sampleTarget)
		if len(reviews) < before {
			samplingNote = fmt.Sprintf("Analyzed a %s sample of %d reviews out of %d.",
				params.SamplingStrategy, len(reviews), before)
		}
	}

	resp, err := e.analyze(ctx, reviews, params)
	if err != nil {
		return nil, nil, err
	}

	resp.Metadata.LocationCount = locationCount
	resp.Metadata.TotalReviewCount = totalCount
	resp.Metadata.AnalyzedReviewCount = len(reviews)
	resp.Metadata.SamplingNote = samplingNote
	resp.Metadata.Complete = resp.Metadata.Complete && fetchComplete
	resp.Metadata.Errors = append(fetchErrors, resp.Metadata.Errors...)

	if params.AnalysisType == models.AnalysisComparison {
		e.labelLocations(ctx, resp)
	}

	e.cache.Put(fingerprint, *resp)
	e.persist(ctx, fingerprint, params, resp)
	return resp, nil, nil
}

// analyze picks the AI or statistical path. The capability probe gates the
// choice up front; once the AI path is entered, batch-threshold errors are
// terminal rather than silently degraded.
func (e *Engine) analyze(ctx context.Context, reviews []models.SanitizedReview, params models.InsightsParams) (*models.InsightsResponse, error) {
	if e.analyzer == nil || e.orchestrator == nil || !e.analyzer.Available(ctx) {
		log.Printf("insights: text-generation capability unavailable, using statistical analysis")
		return &models.InsightsResponse{
			Data: AnalyzeStatistical(reviews, params.AnalysisType),
			Metadata: models.InsightsMetadata{
				AnalysisMethod: "statistical",
				Complete:       true,
			},
		}, nil
	}

	batch, err := e.orchestrator.Analyze(ctx, reviews, params.AnalysisType, params.Themes)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveBatchFailures(len(batch.Errors))
	return &models.InsightsResponse{
		Data: batch.Data,
		Metadata: models.InsightsMetadata{
			AnalysisMethod: "ai",
			Complete:       batch.Complete,
			Errors:         batch.Errors,
		},
	}, nil
}

// fetchAll aggregates reviews across stores. A store that fails to fetch is
// excluded and its failure recorded; only all stores failing is fatal.
func (e *Engine) fetchAll(ctx context.Context, params models.InsightsParams) ([]models.RawReview, []string, bool, int, error) {
	storeIDs := params.StoreIDs
	if len(storeIDs) == 0 {
		resolved, err := e.fetcher.ListStoreIDs(ctx)
		if err != nil {
			return nil, nil, false, 0, fmt.Errorf("resolving account stores: %w", err)
		}
		storeIDs = resolved
	}
	if len(storeIDs) == 0 {
		return nil, nil, false, 0, &InputError{Reason: "no stores available for this account"}
	}

	var all []models.RawReview
	var fetchErrors []string
	complete := true
	succeeded := 0
	for _, storeID := range storeIDs {
		reviews, storeComplete, err := e.fetcher.FetchReviews(ctx, storeID, params.From, params.To)
		if err != nil {
			log.Printf("insights: fetch failed for store %s: %v", storeID, err)
			e.metrics.ObserveFetchError()
			fetchErrors = append(fetchErrors, fmt.Sprintf("store %s: fetch failed: %v", storeID, err))
			complete = false
			continue
		}
		succeeded++
		all = append(all, reviews...)
		complete = complete && storeComplete
	}

	if succeeded == 0 {
		return nil, nil, false, 0, fmt.Errorf("review fetch failed for all %d stores", len(storeIDs))
	}
	return all, fetchErrors, complete, succeeded, nil
}

// lookupPersisted serves a previously persisted result on an in-process
// cache miss, so a restart does not force a re-analysis of a request the
// service already answered. Records older than the cache TTL are ignored.
func (e *Engine) lookupPersisted(ctx context.Context, fingerprint string) *models.InsightsResponse {
	if e.store == nil {
		return nil
	}
	record, err := e.store.GetByFingerprint(ctx, fingerprint)
	if err != nil || time.Since(record.CreatedAt) > DefaultCacheTTL {
		return nil
	}
	resp := models.InsightsResponse{Data: record.Result, Metadata: record.Metadata}
	e.cache.Put(fingerprint, resp)
	resp.Metadata.CacheHit = true
	return &resp
}

// labelLocations resolves store IDs to display names on comparison rollups.
// Best effort; rollups keep the bare store ID when no name is known.
func (e *Engine) labelLocations(ctx context.Context, resp *models.InsightsResponse) {
	namer, ok := e.fetcher.(LocationNamer)
	if !ok || len(resp.Data.LocationComparison) == 0 {
		return
	}
	names := namer.LocationNames(ctx)
	for i := range resp.Data.LocationComparison {
		loc := &resp.Data.LocationComparison[i]
		if loc.LocationName == "" {
			loc.LocationName = names[loc.StoreID]
		}
	}
}

func (e *Engine) persist(ctx context.Context, fingerprint string, params models.InsightsParams, resp *models.InsightsResponse) {
	if e.store == nil {
		return
	}
	now := time.Now().UTC()
	record := models.AnalysisRecord{
		ID:          uuid.New().String(),
		Fingerprint: fingerprint,
		Params:      params,
		Result:      resp.Data,
		Metadata:    resp.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.SaveAnalysis(ctx, record); err != nil {
		log.Printf("insights: failed to persist analysis: %v", err)
	}
}

func validateParams(params *models.InsightsParams) error {
	if params.AnalysisType == "" {
		params.AnalysisType = models.AnalysisSummary
	}
	if !models.ValidAnalysisType(params.AnalysisType) {
		return &InputError{Reason: fmt.Sprintf("unknown analysis type %q", params.AnalysisType)}
	}
	if params.SamplingStrategy == "" {
		params.SamplingStrategy = models.SamplingFull
	}
	if !models.ValidSamplingStrategy(params.SamplingStrategy) {
		return &InputError{Reason: fmt.Sprintf("unknown sampling strategy %q", params.SamplingStrategy)}
	}
	if params.From == "" || params.To == "" {
		return &InputError{Reason: "from and to dates are required"}
	}
	if params.MinRating != 0 && params.MaxRating != 0 && params.MinRating > params.MaxRating {
		return &InputError{Reason: fmt.Sprintf("minRating %d exceeds maxRating %d", params.MinRating, params.MaxRating)}
	}
	return nil
}

func filterByRating(reviews []models.RawReview, minRating, maxRating int) []models.RawReview {
	if minRating == 0 && maxRating == 0 {
		return reviews
	}
	out := make([]models.RawReview, 0, len(reviews))
	for _, r := range reviews {
		if minRating != 0 && r.Rating < minRating {
			continue
		}
		if maxRating != 0 && r.Rating > maxRating {
			continue
		}
		out = append(out, r)
	}
	return out
}
