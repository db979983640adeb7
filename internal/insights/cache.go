package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zombar/reviewinsights/internal/models"
)

// Result cache sizing. Review data for a period changes slowly, so a short
// TTL keeps repeat questions over the same slice cheap without serving
// stale analyses for long.
const (
	DefaultCacheTTL  = 30 * time.Minute
	DefaultCacheSize = 256
)

// ResultCache memoizes completed insight responses keyed by request
// fingerprint.
type ResultCache struct {
	lru *expirable.LRU[string, models.InsightsResponse]
}

// NewResultCache creates a cache with the given capacity and TTL, falling
// back to defaults for non-positive values.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, models.InsightsResponse](size, nil, ttl),
	}
}

// Get returns the cached response for the fingerprint, if present and fresh
func (c *ResultCache) Get(fingerprint string) (models.InsightsResponse, bool) {
	return c.lru.Get(fingerprint)
}

// Put stores a response under the fingerprint
func (c *ResultCache) Put(fingerprint string, resp models.InsightsResponse) {
	c.lru.Add(fingerprint, resp)
}

// Fingerprint derives a stable cache key from everything that affects the
// analysis output. Store IDs and themes are sorted so parameter order does
// not fragment the cache; forceRefresh and outputFormat are deliberately
// excluded because they do not change what is computed.
func Fingerprint(accountID string, params models.InsightsParams) string {
	storeIDs := append([]string(nil), params.StoreIDs...)
	sort.Strings(storeIDs)
	themes := append([]string(nil), params.Themes...)
	sort.Strings(themes)

	h := sha256.New()
	parts := []string{
		accountID,
		strings.Join(storeIDs, ","),
		params.From,
		params.To,
		params.AnalysisType,
		params.SamplingStrategy,
		strconv.Itoa(params.MinRating),
		strconv.Itoa(params.MaxRating),
		strings.Join(themes, ","),
	}
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}
