// Package pricefeed provides PriceSource adapters: a static table for tests
// and fixed-price deployments, and an HTTP client for external feeds.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/ports"
)

// StaticSource serves quotes from an in-process table keyed by source ID.
type StaticSource struct {
	Quotes map[string]ports.PriceQuote
}

func (s StaticSource) Quote(_ context.Context, sourceID string) (ports.PriceQuote, error) {
	quote, ok := s.Quotes[sourceID]
	if !ok {
		return ports.PriceQuote{}, fmt.Errorf("price source %q not configured", sourceID)
	}
	return quote, nil
}

// HTTPSource reads quotes from a JSON price endpoint. The endpoint is queried
// as GET {BaseURL}/prices/{sourceID} and must answer with a quoteResponse
// body. Callers degrade failed reads to static prices, so errors here are
// returned as-is.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

type quoteResponse struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	Valid     bool      `json:"valid"`
}

func (s HTTPSource) Quote(ctx context.Context, sourceID string) (ports.PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/prices/%s", s.BaseURL, url.PathEscape(sourceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.PriceQuote{}, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return ports.PriceQuote{}, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.PriceQuote{}, fmt.Errorf("price source %q returned status %d", sourceID, resp.StatusCode)
	}
	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ports.PriceQuote{}, fmt.Errorf("decode price response: %w", err)
	}
	value, ok := new(big.Int).SetString(body.Value, 10)
	if !ok {
		return ports.PriceQuote{}, fmt.Errorf("price source %q returned malformed value %q", sourceID, body.Value)
	}
	return ports.PriceQuote{
		Value:     value,
		UpdatedAt: body.UpdatedAt,
		Valid:     body.Valid,
	}, nil
}

var _ ports.PriceSource = StaticSource{}
var _ ports.PriceSource = HTTPSource{}
