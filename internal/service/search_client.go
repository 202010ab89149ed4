package service

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// SearchClient looks up web listings for a product name.
type SearchClient interface {
	Search(ctx context.Context, productName string) ([]model.SearchListing, error)
}

type customSearchClient struct {
	svc      *customsearch.Service
	engineID string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewSearchClient creates a SearchClient backed by Google Custom Search.
func NewSearchClient(ctx context.Context, apiKey, engineID string, timeout time.Duration, logger zerolog.Logger) (SearchClient, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("search API key and engine ID cannot be empty")
	}
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Custom Search service: %w", err)
	}
	return &customSearchClient{
		svc:      svc,
		engineID: engineID,
		timeout:  timeout,
		logger:   logger.With().Str("service", "SearchClient").Logger(),
	}, nil
}

// Search queries for retail listings of the product. The query is biased
// toward shopping results so the snippets carry prices.
func (c *customSearchClient) Search(ctx context.Context, productName string) ([]model.SearchListing, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf("%s price buy", productName)
	resp, err := c.svc.Cse.List().Q(query).Cx(c.engineID).Num(8).Context(ctx).Do()
	if err != nil {
		c.logger.Error().Err(err).Str("query", query).Msg("Custom Search call failed")
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	listings := make([]model.SearchListing, 0, len(resp.Items))
	for _, item := range resp.Items {
		listings = append(listings, model.SearchListing{
			Title:   item.Title,
			Snippet: item.Snippet,
			URL:     item.Link,
		})
	}
	return listings, nil
}
