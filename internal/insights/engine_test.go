package insights

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

// fakeFetcher serves a canned review set per store
type fakeFetcher struct {
	stores     map[string][]models.RawReview
	names      map[string]string
	incomplete map[string]bool
	failing    map[string]bool
	calls      int
}

func (f *fakeFetcher) FetchReviews(ctx context.Context, storeID, from, to string) ([]models.RawReview, bool, error) {
	f.calls++
	if f.failing[storeID] {
		return nil, false, errors.New("upstream timeout")
	}
	return f.stores[storeID], !f.incomplete[storeID], nil
}

func (f *fakeFetcher) ListStoreIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.stores))
	for id := range f.stores {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeFetcher) LocationNames(ctx context.Context) map[string]string {
	return f.names
}

type fakeStore struct {
	saved []models.AnalysisRecord
}

func (s *fakeStore) SaveAnalysis(ctx context.Context, record models.AnalysisRecord) error {
	s.saved = append(s.saved, record)
	return nil
}

func (s *fakeStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].Fingerprint == fingerprint {
			return &s.saved[i], nil
		}
	}
	return nil, errors.New("analysis not found")
}

func rawReviews(storeID string, ratings ...int) []models.RawReview {
	reviews := make([]models.RawReview, len(ratings))
	for i, rating := range ratings {
		reviews[i] = models.RawReview{
			StoreID: storeID,
			Rating:  rating,
			Comment: fmt.Sprintf("review %d for %s", i, storeID),
			Date:    "2025-06-01",
		}
	}
	return reviews
}

func testEngine(fetcher ReviewFetcher, capability Capability, store AnalysisStore) *Engine {
	var analyzer *Analyzer
	var orchestrator *Orchestrator
	if capability != nil {
		analyzer = NewAnalyzer(capability, 4096)
		orchestrator = NewOrchestrator(analyzer, DefaultBatchSize)
	}
	return NewEngine(EngineConfig{
		Fetcher:      fetcher,
		Analyzer:     analyzer,
		Orchestrator: orchestrator,
		Store:        store,
		AccountID:    "acct-test",
	})
}

func summaryParams() models.InsightsParams {
	return models.InsightsParams{
		StoreIDs:     []string{"store-1"},
		From:         "2025-06-01",
		To:           "2025-06-30",
		AnalysisType: models.AnalysisSummary,
	}
}

func TestEngineRejectsInvalidRatingRange(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{"store-1": rawReviews("store-1", 5)}}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.MinRating = 4
	params.MaxRating = 2
	_, _, err := engine.GenerateInsights(context.Background(), params)

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("error = %v, want *InputError", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 for a rejected request", fetcher.calls)
	}
}

func TestEngineValidatesParams(t *testing.T) {
	engine := testEngine(&fakeFetcher{}, nil, nil)
	tests := []struct {
		name   string
		mutate func(*models.InsightsParams)
	}{
		{"unknown analysis type", func(p *models.InsightsParams) { p.AnalysisType = "vibes" }},
		{"unknown strategy", func(p *models.InsightsParams) { p.SamplingStrategy = "random" }},
		{"missing dates", func(p *models.InsightsParams) { p.From = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := summaryParams()
			tt.mutate(&params)
			_, _, err := engine.GenerateInsights(context.Background(), params)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Errorf("error = %v, want *InputError", err)
			}
		})
	}
}

func TestEngineStatisticalFallbackExactMean(t *testing.T) {
	// 50 reviews, capability unavailable: the statistical path must report
	// the exact arithmetic mean.
	ratings := make([]int, 50)
	sum := 0
	for i := range ratings {
		ratings[i] = (i % 5) + 1
		sum += ratings[i]
	}
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", ratings...),
	}}
	engine := testEngine(fetcher, &fakeCapability{available: false}, nil)

	resp, confirm, err := engine.GenerateInsights(context.Background(), summaryParams())
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if confirm != nil {
		t.Fatalf("unexpected confirmation payload: %+v", confirm)
	}
	if resp.Metadata.AnalysisMethod != "statistical" {
		t.Errorf("analysis method = %q, want statistical", resp.Metadata.AnalysisMethod)
	}
	want := float64(sum) / 50
	if resp.Data.Summary.AverageRating != want {
		t.Errorf("average rating = %v, want exactly %v", resp.Data.Summary.AverageRating, want)
	}
	if resp.Metadata.TotalReviewCount != 50 || resp.Metadata.AnalyzedReviewCount != 50 {
		t.Errorf("metadata counts = %d/%d, want 50/50",
			resp.Metadata.TotalReviewCount, resp.Metadata.AnalyzedReviewCount)
	}
}

func TestEngineAIPath(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4, 4),
	}}
	engine := testEngine(fetcher, &fakeCapability{available: true}, nil)

	resp, _, err := engine.GenerateInsights(context.Background(), summaryParams())
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if resp.Metadata.AnalysisMethod != "ai" {
		t.Errorf("analysis method = %q, want ai", resp.Metadata.AnalysisMethod)
	}
	if !resp.Metadata.Complete {
		t.Error("complete = false, want true")
	}
}

func TestEnginePerStoreFailureSwallowed(t *testing.T) {
	fetcher := &fakeFetcher{
		stores: map[string][]models.RawReview{
			"store-1": rawReviews("store-1", 5, 4),
			"store-2": rawReviews("store-2", 1),
		},
		failing: map[string]bool{"store-2": true},
	}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.StoreIDs = []string{"store-1", "store-2"}
	resp, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if resp.Metadata.LocationCount != 1 {
		t.Errorf("location count = %d, want 1 surviving store", resp.Metadata.LocationCount)
	}
	if resp.Metadata.Complete {
		t.Error("complete = true, want false with a failed store")
	}
	if len(resp.Metadata.Errors) != 1 {
		t.Errorf("errors = %v, want the store failure recorded", resp.Metadata.Errors)
	}
}

func TestEngineAllStoresFailingIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		stores:  map[string][]models.RawReview{"store-1": nil, "store-2": nil},
		failing: map[string]bool{"store-1": true, "store-2": true},
	}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.StoreIDs = []string{"store-1", "store-2"}
	_, _, err := engine.GenerateInsights(context.Background(), params)
	if err == nil {
		t.Fatal("GenerateInsights succeeded, want fatal error when every store fails")
	}
}

func TestEngineGateReturnsConfirmation(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", make([]int, 500)...),
	}}
	for i := range fetcher.stores["store-1"] {
		fetcher.stores["store-1"][i].Rating = 4
	}
	engine := testEngine(fetcher, nil, nil)

	resp, confirm, err := engine.GenerateInsights(context.Background(), summaryParams())
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if resp != nil {
		t.Fatal("got a response, want only a confirmation payload")
	}
	if confirm == nil || !confirm.RequiresConfirmation {
		t.Fatalf("confirmation payload = %+v, want requiresConfirmation", confirm)
	}
	if confirm.TotalReviewCount != 500 {
		t.Errorf("total review count = %d, want 500", confirm.TotalReviewCount)
	}
}

func TestEngineSkipConfirmationProceeds(t *testing.T) {
	reviews := make([]models.RawReview, 500)
	for i := range reviews {
		reviews[i] = models.RawReview{StoreID: "store-1", Rating: 4}
	}
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{"store-1": reviews}}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.SkipConfirmation = true
	resp, confirm, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if confirm != nil {
		t.Fatalf("unexpected confirmation payload: %+v", confirm)
	}
	if resp.Metadata.AnalyzedReviewCount != 500 {
		t.Errorf("analyzed count = %d, want 500", resp.Metadata.AnalyzedReviewCount)
	}
}

func TestEngineSamplingBoundsWorkingSet(t *testing.T) {
	reviews := make([]models.RawReview, 3000)
	for i := range reviews {
		reviews[i] = models.RawReview{StoreID: "store-1", Rating: (i % 5) + 1, Date: "2025-06-01"}
	}
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{"store-1": reviews}}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.SamplingStrategy = models.SamplingRepresentative
	resp, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if resp.Metadata.AnalyzedReviewCount != DefaultSampleTarget {
		t.Errorf("analyzed count = %d, want sample target %d",
			resp.Metadata.AnalyzedReviewCount, DefaultSampleTarget)
	}
	if resp.Metadata.TotalReviewCount != 3000 {
		t.Errorf("total count = %d, want 3000", resp.Metadata.TotalReviewCount)
	}
	if resp.Metadata.SamplingNote == "" {
		t.Error("sampling note missing for a sampled analysis")
	}
}

func TestEngineRatingFilter(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 1, 2, 3, 4, 5),
	}}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.MinRating = 4
	resp, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if resp.Metadata.TotalReviewCount != 2 {
		t.Errorf("filtered count = %d, want 2 reviews rated >= 4", resp.Metadata.TotalReviewCount)
	}
	if resp.Data.Summary.AverageRating != 4.5 {
		t.Errorf("average rating = %v, want 4.5", resp.Data.Summary.AverageRating)
	}
}

func TestEngineCacheHit(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	engine := testEngine(fetcher, nil, nil)
	params := summaryParams()

	first, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first call reported a cache hit")
	}
	callsAfterFirst := fetcher.calls

	second, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second call did not report a cache hit")
	}
	if fetcher.calls != callsAfterFirst {
		t.Errorf("second call fetched again: %d calls", fetcher.calls)
	}
}

func TestEngineForceRefreshBypassesCache(t *testing.T) {
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	engine := testEngine(fetcher, nil, nil)
	params := summaryParams()

	if _, _, err := engine.GenerateInsights(context.Background(), params); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	callsAfterFirst := fetcher.calls

	params.ForceRefresh = true
	resp, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("refresh call failed: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("forced refresh reported a cache hit")
	}
	if fetcher.calls == callsAfterFirst {
		t.Error("forced refresh did not refetch")
	}
}

func TestEnginePersistsAnalysis(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5),
	}}
	engine := testEngine(fetcher, nil, store)

	if _, _, err := engine.GenerateInsights(context.Background(), summaryParams()); err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(store.saved))
	}
	record := store.saved[0]
	if record.ID == "" || record.Fingerprint == "" {
		t.Errorf("record missing identity: %+v", record)
	}
	if record.Params.AnalysisType != models.AnalysisSummary {
		t.Errorf("record params = %+v", record.Params)
	}
}

func TestEngineLabelsComparisonRollups(t *testing.T) {
	fetcher := &fakeFetcher{
		stores: map[string][]models.RawReview{
			"store-1": rawReviews("store-1", 5, 4),
			"store-2": rawReviews("store-2", 2),
		},
		names: map[string]string{"store-1": "Central", "store-2": "Harbour"},
	}
	engine := testEngine(fetcher, nil, nil)

	params := summaryParams()
	params.StoreIDs = []string{"store-1", "store-2"}
	params.AnalysisType = models.AnalysisComparison
	resp, _, err := engine.GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}

	if len(resp.Data.LocationComparison) != 2 {
		t.Fatalf("got %d rollups, want 2", len(resp.Data.LocationComparison))
	}
	want := map[string]string{"store-1": "Central", "store-2": "Harbour"}
	for _, loc := range resp.Data.LocationComparison {
		if loc.LocationName != want[loc.StoreID] {
			t.Errorf("location name for %s = %q, want %q", loc.StoreID, loc.LocationName, want[loc.StoreID])
		}
	}
}

func TestEnginePersistedResultServedOnCacheMiss(t *testing.T) {
	store := &fakeStore{}
	params := summaryParams()

	first := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	if _, _, err := testEngine(first, nil, store).GenerateInsights(context.Background(), params); err != nil {
		t.Fatalf("first engine failed: %v", err)
	}

	// A fresh engine has an empty in-process cache but shares the store,
	// as after a restart.
	second := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	resp, _, err := testEngine(second, nil, store).GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("second engine failed: %v", err)
	}
	if !resp.Metadata.CacheHit {
		t.Error("persisted result not reported as a cache hit")
	}
	if second.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 when serving the persisted result", second.calls)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d records, want 1 with no re-analysis", len(store.saved))
	}
}

func TestEngineStalePersistedResultIgnored(t *testing.T) {
	store := &fakeStore{}
	params := summaryParams()

	first := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	if _, _, err := testEngine(first, nil, store).GenerateInsights(context.Background(), params); err != nil {
		t.Fatalf("first engine failed: %v", err)
	}
	store.saved[0].CreatedAt = time.Now().UTC().Add(-2 * DefaultCacheTTL)

	second := &fakeFetcher{stores: map[string][]models.RawReview{
		"store-1": rawReviews("store-1", 5, 4),
	}}
	resp, _, err := testEngine(second, nil, store).GenerateInsights(context.Background(), params)
	if err != nil {
		t.Fatalf("second engine failed: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("stale persisted result served as a cache hit")
	}
	if second.calls == 0 {
		t.Error("stale persisted result suppressed the refetch")
	}
}

func TestFingerprintStableUnderOrdering(t *testing.T) {
	a := models.InsightsParams{
		StoreIDs: []string{"b", "a"}, From: "2025-01-01", To: "2025-02-01",
		AnalysisType: models.AnalysisThemes, Themes: []string{"service", "price"},
	}
	b := models.InsightsParams{
		StoreIDs: []string{"a", "b"}, From: "2025-01-01", To: "2025-02-01",
		AnalysisType: models.AnalysisThemes, Themes: []string{"price", "service"},
	}
	if Fingerprint("acct", a) != Fingerprint("acct", b) {
		t.Error("fingerprint depends on parameter ordering")
	}

	c := b
	c.MinRating = 3
	if Fingerprint("acct", b) == Fingerprint("acct", c) {
		t.Error("fingerprint ignores rating filter")
	}
}
