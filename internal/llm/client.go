// Package llm wraps the external text-generation capability used for review
// analysis. The capability is treated as unreliable and possibly absent;
// callers must be prepared to fall back when any method returns an error.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/zombar/reviewinsights/internal/models"
)

const (
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 360 * time.Second

	// DefaultMaxTokens bounds a single completion so one batch can never
	// consume an uncontrolled number of tokens.
	DefaultMaxTokens = 4096
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration

	probeOnce sync.Once
	available bool
}

// New creates a new capability client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// Available probes the capability before first use. The probe runs once per
// client; an unreachable backend is remembered so later calls fail fast
// into the statistical path instead of timing out per batch.
func (c *Client) Available(ctx context.Context) bool {
	c.probeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := c.client.List(probeCtx); err != nil {
			log.Printf("llm: capability probe failed: %v", err)
			return
		}
		c.available = true
	})
	return c.available
}

// Invoke sends one structured request to the capability and returns the raw
// generated text. Parsing and validation are the caller's responsibility.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	log.Printf("llm: sending request to model %s (timeout: %v, max_tokens: %d)", c.model, c.timeout, maxTokens)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		System: systemPrompt,
		Prompt: userMessage,
		Stream: new(bool), // false
		Options: map[string]interface{}{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		log.Printf("llm: generation failed: %v", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	log.Printf("llm: response received (%d chars)", len(result))
	return result, nil
}

// AnalyzeReviews builds the analysis request for one batch and invokes the
// capability. The returned text is expected to contain a JSON object in the
// canonical insight shape for the analysis type, but callers must validate.
func (c *Client) AnalyzeReviews(ctx context.Context, reviews []models.SanitizedReview, analysisType string, themes []string, maxTokens int) (string, error) {
	serialized, err := serializeReviews(reviews)
	if err != nil {
		return "", fmt.Errorf("failed to serialize reviews: %w", err)
	}

	prompt := fmt.Sprintf(`Analyze the following customer reviews.

%s

Reviews (JSON lines, one review per line):
%s

Return ONLY the JSON object, nothing else:`, analysisInstructions(analysisType, themes), serialized)

	return c.Invoke(ctx, analysisSystemPrompt, prompt, maxTokens, 0.2)
}

// MergeResults asks the capability to combine partial per-batch results into
// one, recomputing aggregates rather than concatenating.
func (c *Client) MergeResults(ctx context.Context, partials []models.InsightResult, analysisType string) (string, error) {
	serialized, err := json.Marshal(partials)
	if err != nil {
		return "", fmt.Errorf("failed to serialize partial results: %w", err)
	}

	prompt := fmt.Sprintf(`The following JSON array contains %d partial analysis results, each produced from a separate batch of customer reviews. Combine them into a single result of the same shape.

Requirements:
- Recompute numeric aggregates (average ratings, distributions, frequencies) weighted by each batch's review counts; do NOT simply average percentages
- Merge themes and issues that describe the same thing, summing their frequencies; keep at most the 10 most frequent of each
- Sentiment distribution percentages must sum to 100
- Keep the result shape identical to the inputs (%s analysis)

Partial results:
%s

Return ONLY the merged JSON object, nothing else:`, len(partials), analysisType, serialized)

	return c.Invoke(ctx, analysisSystemPrompt, prompt, DefaultMaxTokens, 0.1)
}

const analysisSystemPrompt = `You are a review analysis assistant for multi-location businesses. You respond with a single valid JSON object matching the requested shape. You never include commentary, markdown fences, or fields that were not requested. Frequencies are review counts, severities are one of "high", "medium", "low", and sentiment values are one of "positive", "neutral", "negative".`

// analysisInstructions returns the analysis-type-specific instruction
// template describing the expected output shape.
func analysisInstructions(analysisType string, themes []string) string {
	switch analysisType {
	case models.AnalysisIssues:
		return `Identify concrete problems customers report. Return a JSON object:
{"issues": [{"category": "...", "description": "...", "severity": "high|medium|low", "frequency": <count>, "affectedLocations": ["storeId"], "suggestedAction": "..."}]}
Order issues by frequency, at most 10.`
	case models.AnalysisComparison:
		return `Compare the locations appearing in the reviews. Return a JSON object:
{"locationComparison": [{"storeId": "...", "averageRating": <number>, "reviewCount": <count>, "sentiment": "positive|neutral|negative", "strengths": ["..."], "weaknesses": ["..."]}]}
Include every storeId present in the reviews exactly once.`
	case models.AnalysisTrends:
		return `Detect movement over time within the review period. Return a JSON object:
{"trends": {"direction": "improving|stable|declining", "previousPeriod": {"period": "...", "averageRating": <number>, "reviewCount": <count>}, "currentPeriod": {"period": "...", "averageRating": <number>, "reviewCount": <count>}, "emergingIssues": ["..."], "resolvedIssues": ["..."]}}`
	case models.AnalysisThemes:
		focus := ""
		if len(themes) > 0 {
			focus = fmt.Sprintf(" Focus on these themes where present: %s.", strings.Join(themes, ", "))
		}
		return fmt.Sprintf(`Extract recurring themes from the review text.%s Return a JSON object:
{"themes": {"positive": [{"theme": "...", "frequency": <count>, "exampleQuote": "..."}], "negative": [{"theme": "...", "frequency": <count>, "severity": "high|medium|low", "exampleQuote": "..."}]}}
At most 10 themes per polarity, ordered by frequency.`, focus)
	default: // summary
		return `Produce an executive summary. Return a JSON object:
{"summary": {"executiveSummary": "2-3 sentences", "overallSentiment": "positive|neutral|negative", "averageRating": <number>, "sentimentDistribution": {"positive": <pct>, "neutral": <pct>, "negative": <pct>}, "ratingDistribution": {"1": <count>, "2": <count>, "3": <count>, "4": <count>, "5": <count>}}}
The sentiment distribution percentages must sum to 100.`
	}
}

// serializeReviews renders reviews as compact JSON lines to keep the prompt
// token footprint predictable.
func serializeReviews(reviews []models.SanitizedReview) (string, error) {
	var b strings.Builder
	for _, r := range reviews {
		line, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
