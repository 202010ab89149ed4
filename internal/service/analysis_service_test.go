package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/fingerprint"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsageRepo struct {
	status *model.UsageStatus
	err    error
	calls  int
}

func (s *stubUsageRepo) CheckAndIncrement(ctx context.Context, fp string, maxPerDay int) (*model.UsageStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.status, nil
}

func (s *stubUsageRepo) PeekUsage(ctx context.Context, fp string, maxPerDay int) *model.UsageStatus {
	return s.status
}

type stubRecognition struct {
	result *model.RecognitionResult
	err    error
	calls  int
}

func (s *stubRecognition) Recognize(ctx context.Context, image []byte) (*model.RecognitionResult, error) {
	s.calls++
	return s.result, s.err
}

type stubEnrichment struct {
	result *model.EnrichmentResult
	err    error
	calls  int
}

func (s *stubEnrichment) Enrich(ctx context.Context, image []byte, labels []string) (*model.EnrichmentResult, error) {
	s.calls++
	return s.result, s.err
}

type stubSearch struct {
	listings  []model.SearchListing
	err       error
	calls     int
	lastQuery string
}

func (s *stubSearch) Search(ctx context.Context, productName string) ([]model.SearchListing, error) {
	s.calls++
	s.lastQuery = productName
	return s.listings, s.err
}

type stubMarket struct {
	rates map[string]model.MarketRate
	err   error
	calls int
}

func (s *stubMarket) GetRates(ctx context.Context, assetIDs []string) (map[string]model.MarketRate, error) {
	s.calls++
	return s.rates, s.err
}

type pipelineStubs struct {
	usage       *stubUsageRepo
	recognition *stubRecognition
	enrichment  *stubEnrichment
	search      *stubSearch
	market      *stubMarket
}

func newPipeline(t *testing.T) (AnalysisService, *pipelineStubs) {
	t.Helper()
	stubs := &pipelineStubs{
		usage: &stubUsageRepo{status: &model.UsageStatus{
			Used: 1, Remaining: 2, Total: 3, ResetAt: time.Now().Add(time.Hour),
		}},
		recognition: &stubRecognition{result: &model.RecognitionResult{
			Labels: []model.Label{{Description: "sneaker", Score: 0.92}, {Description: "shoe", Score: 0.81}},
		}},
		enrichment: &stubEnrichment{result: &model.EnrichmentResult{
			ProductName: "Air Zoom Sneaker",
			PriceMin:    decimal.NewFromInt(10),
			PriceMax:    decimal.NewFromInt(20),
			Category:    "footwear",
			Confidence:  80,
		}},
		search: &stubSearch{listings: []model.SearchListing{
			{Title: "Air Zoom Sneaker", Snippet: "in stock for $25 with free returns"},
		}},
		market: &stubMarket{rates: map[string]model.MarketRate{
			"bitcoin": {USDPrice: decimal.NewFromInt(50000), USD24hChange: -1.2},
		}},
	}
	svc := NewAnalysisService(
		stubs.usage, stubs.recognition, stubs.enrichment, stubs.search, stubs.market,
		nil, nil, "analysis_events", 3, zerolog.Nop(),
	)
	return svc, stubs
}

var testSignals = fingerprint.Signals{UserAgent: "test-agent", Language: "en-US"}

func TestAnalyzeQuotaExceededShortCircuits(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.usage.err = &repository.QuotaExceededError{ResetAt: time.Now().Add(time.Hour)}

	_, err := svc.Analyze(context.Background(), []byte("img"), testSignals, nil)

	var quotaErr *repository.QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Zero(t, stubs.recognition.calls, "over-quota callers must cost no external calls")
	assert.Zero(t, stubs.enrichment.calls)
	assert.Zero(t, stubs.search.calls)
	assert.Zero(t, stubs.market.calls)
}

func TestAnalyzeStoreFailureFailsClosed(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.usage.err = repository.ErrStoreUnavailable

	_, err := svc.Analyze(context.Background(), []byte("img"), testSignals, nil)

	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
	assert.Zero(t, stubs.recognition.calls)
}

func TestAnalyzeRecognitionFailureIsTerminal(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.recognition.result = nil
	stubs.recognition.err = ErrRecognitionUnavailable

	_, err := svc.Analyze(context.Background(), []byte("img"), testSignals, nil)

	require.ErrorIs(t, err, ErrRecognitionUnavailable)
	assert.Zero(t, stubs.enrichment.calls, "no enrichment call after recognition failure")
	assert.Zero(t, stubs.search.calls)
	assert.Zero(t, stubs.market.calls)
}

func TestAnalyzeEnrichmentFailureDegrades(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.enrichment.result = nil
	stubs.enrichment.err = ErrEnrichmentUnavailable

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin"})

	require.NoError(t, err)
	assert.Nil(t, result.Enrichment)
	require.NotNil(t, result.Price)
	assert.Equal(t, model.PriceSourceSearch, result.Price.Source)
	assert.Equal(t, "25", result.Price.Amount.String())
	// Without enrichment the top recognition label drives the search.
	assert.Equal(t, "sneaker", stubs.search.lastQuery)
}

func TestAnalyzeSearchFailureFallsBackToAIEstimate(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.search.listings = nil
	stubs.search.err = ErrSearchUnavailable

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin"})

	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.Equal(t, model.PriceSourceAIEstimate, result.Price.Source)
	// Midpoint of the enrichment bounds 10 and 20.
	assert.Equal(t, "15", result.Price.Amount.String())
}

func TestAnalyzeNoPriceIsStillSuccess(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.enrichment.result = nil
	stubs.enrichment.err = ErrEnrichmentUnavailable
	stubs.search.listings = []model.SearchListing{{Title: "no numbers here", Snippet: "reviews only"}}

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin"})

	require.NoError(t, err)
	assert.Nil(t, result.Price)
	assert.Empty(t, result.Conversions)
	assert.Zero(t, stubs.market.calls, "no conversions are fetched without a price")
}

func TestAnalyzeConversionMath(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.search.listings = []model.SearchListing{{Title: "exact", Snippet: "price: 100"}}

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin"})

	require.NoError(t, err)
	require.Contains(t, result.Conversions, "bitcoin")
	conv := result.Conversions["bitcoin"]
	assert.Equal(t, "0.002", conv.ConvertedAmount.String())
	assert.Equal(t, "100", conv.SourceUSDAmount.String())
	assert.Equal(t, "50000", conv.USDUnitPrice.String())
}

func TestAnalyzeExcludesAssetsWithoutRates(t *testing.T) {
	svc, stubs := newPipeline(t)

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin", "fakecoin"})

	require.NoError(t, err)
	assert.Equal(t, 1, stubs.market.calls)
	assert.Len(t, result.Conversions, 1)
	assert.Contains(t, result.Conversions, "bitcoin")
	assert.NotContains(t, result.Conversions, "fakecoin")
}

func TestAnalyzeMarketFailureDegradesToEmptyConversions(t *testing.T) {
	svc, stubs := newPipeline(t)
	stubs.market.rates = nil
	stubs.market.err = ErrMarketDataUnavailable

	result, err := svc.Analyze(context.Background(), []byte("img"), testSignals, []string{"bitcoin"})

	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.Empty(t, result.Conversions)
}

func TestUsagePeeksWithoutRecording(t *testing.T) {
	svc, stubs := newPipeline(t)

	status := svc.Usage(context.Background(), testSignals)

	require.NotNil(t, status)
	assert.Equal(t, 1, status.Used)
	assert.Zero(t, stubs.recognition.calls)
}
