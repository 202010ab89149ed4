package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const marketPriceEndpoint = "/simple/price"

// MarketClient fetches current USD quotes for crypto assets.
type MarketClient interface {
	GetRates(ctx context.Context, assetIDs []string) (map[string]model.MarketRate, error)
}

type coinGeckoClient struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewMarketClient creates a MarketClient backed by the CoinGecko API.
// No retries; the caller decides how to degrade.
func NewMarketClient(baseURL string, timeout time.Duration, logger zerolog.Logger) MarketClient {
	return &coinGeckoClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("service", "MarketClient").Logger(),
	}
}

// GetRates returns the USD price and 24h change for each requested asset.
// Assets the service does not quote are simply absent from the map.
func (c *coinGeckoClient) GetRates(ctx context.Context, assetIDs []string) (map[string]model.MarketRate, error) {
	if len(assetIDs) == 0 {
		return map[string]model.MarketRate{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(assetIDs, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, marketPriceEndpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrMarketDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Market data request failed")
		return nil, fmt.Errorf("%w: %v", ErrMarketDataUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrMarketDataUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status_code", resp.StatusCode).Msg("Market data service returned an error")
		return nil, fmt.Errorf("%w: HTTP %d", ErrMarketDataUnavailable, resp.StatusCode)
	}

	var payload map[string]struct {
		USD          decimal.Decimal `json:"usd"`
		USD24hChange float64         `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMarketDataUnavailable, err)
	}

	rates := make(map[string]model.MarketRate, len(payload))
	for _, id := range assetIDs {
		quote, ok := payload[id]
		if !ok || !quote.USD.IsPositive() {
			continue
		}
		rates[id] = model.MarketRate{
			USDPrice:     quote.USD,
			USD24hChange: quote.USD24hChange,
		}
	}
	return rates, nil
}
