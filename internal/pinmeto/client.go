package pinmeto

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

const defaultPageSize = 100

// Client talks to the PinMeTo listings API for one account
type Client struct {
	baseURL   string
	accountID string
	tokens    *TokenSource
	client    *http.Client
}

func NewClient(apiURL, accountID string, tokens *TokenSource, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(apiURL, "/"),
		accountID: accountID,
		tokens:    tokens,
		client:    client,
	}
}

// page is the envelope every paginated listings endpoint returns
type page struct {
	Data   json.RawMessage `json:"data"`
	Paging struct {
		NextURL string `json:"nextUrl"`
	} `json:"paging"`
}

// apiReview is the wire shape of one review
type apiReview struct {
	ID               string `json:"id"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment"`
	Date             string `json:"date"`
	HasOwnerResponse bool   `json:"hasOwnerResponse"`
}

// apiLocation is the subset of the location listing the engine needs
type apiLocation struct {
	StoreID string `json:"storeId"`
	Name    string `json:"name"`
}

// FetchReviews returns one store's reviews within the inclusive date range.
// The bool reports completeness: a page failing mid-pagination yields the
// pages collected so far with the flag false rather than discarding them.
func (c *Client) FetchReviews(ctx context.Context, storeID, from, to string) ([]models.RawReview, bool, error) {
	query := url.Values{
		"pagesize": {fmt.Sprint(defaultPageSize)},
		"from":     {from},
		"to":       {to},
	}
	first := fmt.Sprintf("%s/listings/v3/%s/locations/%s/reviews?%s",
		c.baseURL, c.accountID, url.PathEscape(storeID), query.Encode())

	var reviews []models.RawReview
	complete := true
	next := first
	for next != "" {
		var p page
		if err := c.get(ctx, next, &p); err != nil {
			if next == first {
				return nil, false, err
			}
			log.Printf("pinmeto: pagination interrupted for store %s: %v", storeID, err)
			complete = false
			break
		}

		var batch []apiReview
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &batch); err != nil {
				return nil, false, fmt.Errorf("decoding reviews for store %s: %w", storeID, err)
			}
		}
		for _, r := range batch {
			reviews = append(reviews, models.RawReview{
				ID:               r.ID,
				StoreID:          storeID,
				Rating:           r.Rating,
				Comment:          r.Comment,
				Date:             r.Date,
				HasOwnerResponse: r.HasOwnerResponse,
			})
		}
		next = p.Paging.NextURL
	}
	return reviews, complete, nil
}

// ListStoreIDs returns every store ID on the account
func (c *Client) ListStoreIDs(ctx context.Context) ([]string, error) {
	locations, _, err := c.listLocations(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		ids = append(ids, loc.StoreID)
	}
	return ids, nil
}

// LocationNames maps store IDs to display names, for labelling comparison
// rollups. Best effort; an error yields an empty map.
func (c *Client) LocationNames(ctx context.Context) map[string]string {
	locations, _, err := c.listLocations(ctx)
	if err != nil {
		log.Printf("pinmeto: listing locations failed: %v", err)
		return map[string]string{}
	}
	names := make(map[string]string, len(locations))
	for _, loc := range locations {
		names[loc.StoreID] = loc.Name
	}
	return names
}

func (c *Client) listLocations(ctx context.Context) ([]apiLocation, bool, error) {
	first := fmt.Sprintf("%s/listings/v3/%s/locations?pagesize=%d", c.baseURL, c.accountID, defaultPageSize)

	var locations []apiLocation
	complete := true
	next := first
	for next != "" {
		var p page
		if err := c.get(ctx, next, &p); err != nil {
			if next == first {
				return nil, false, err
			}
			complete = false
			break
		}
		var batch []apiLocation
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &batch); err != nil {
				return nil, false, fmt.Errorf("decoding locations: %w", err)
			}
		}
		locations = append(locations, batch...)
		next = p.Paging.NextURL
	}
	return locations, complete, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}
