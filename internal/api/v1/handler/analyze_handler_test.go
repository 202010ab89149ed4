package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/fingerprint"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalysisService struct {
	result *model.AnalysisResult
	err    error
	status *model.UsageStatus
}

func (s *stubAnalysisService) Analyze(ctx context.Context, image []byte, signals fingerprint.Signals, assetIDs []string) (*model.AnalysisResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubAnalysisService) Usage(ctx context.Context, signals fingerprint.Signals) *model.UsageStatus {
	return s.status
}

func analyzeRequestBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(dto.AnalyzeRequestDTO{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("not-really-a-jpeg")),
		AssetIDs:    []string{"bitcoin"},
		Signals:     dto.ClientSignalsDTO{UserAgent: "test-agent"},
	})
	require.NoError(t, err)
	return string(body)
}

func performAnalyze(t *testing.T, svc service.AnalysisService, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewAnalyzeHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeSuccessPayload(t *testing.T) {
	svc := &stubAnalysisService{result: &model.AnalysisResult{
		Recognition: &model.RecognitionResult{Labels: []model.Label{{Description: "sneaker", Score: 0.9}}},
		Price:       &model.PriceEstimate{Amount: decimal.NewFromInt(100), Source: model.PriceSourceSearch},
		Conversions: map[string]model.CryptoConversion{
			"bitcoin": {
				AssetID:         "bitcoin",
				USDUnitPrice:    decimal.NewFromInt(50000),
				ConvertedAmount: decimal.RequireFromString("0.002"),
				SourceUSDAmount: decimal.NewFromInt(100),
			},
		},
		Usage:      model.UsageStatus{Used: 1, Remaining: 2, Total: 3, ResetAt: time.Now().Add(time.Hour)},
		AnalyzedAt: time.Now().UTC(),
	}}

	rec := performAnalyze(t, svc, analyzeRequestBody(t))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.AnalyzeResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sneaker", resp.Recognition.Labels[0].Description)
	assert.Nil(t, resp.Enrichment)
	require.NotNil(t, resp.Price)
	assert.Equal(t, "search", resp.Price.Source)
	assert.Equal(t, "100", resp.Price.Amount)
	assert.Equal(t, "0.002", resp.Conversions["bitcoin"].ConvertedAmount)
	assert.Equal(t, 2, resp.Usage.Remaining)
}

func TestAnalyzeQuotaExceededMapsTo429(t *testing.T) {
	resetAt := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	svc := &stubAnalysisService{err: &repository.QuotaExceededError{ResetAt: resetAt}}

	rec := performAnalyze(t, svc, analyzeRequestBody(t))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp dto.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "quota_exceeded", resp.Kind)
	require.NotNil(t, resp.ResetAt)
	assert.True(t, resp.ResetAt.Equal(resetAt))
}

func TestAnalyzeRecognitionFailureMapsTo422(t *testing.T) {
	svc := &stubAnalysisService{err: service.ErrRecognitionUnavailable}

	rec := performAnalyze(t, svc, analyzeRequestBody(t))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp dto.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "recognition_unavailable", resp.Kind)
	assert.Nil(t, resp.ResetAt)
}

func TestAnalyzeStoreFailureMapsTo503(t *testing.T) {
	svc := &stubAnalysisService{err: repository.ErrStoreUnavailable}

	rec := performAnalyze(t, svc, analyzeRequestBody(t))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp dto.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "store_unavailable", resp.Kind)
}

func TestAnalyzeRejectsMissingImage(t *testing.T) {
	svc := &stubAnalysisService{}

	rec := performAnalyze(t, svc, `{"asset_ids":["bitcoin"]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp dto.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Kind)
}

func TestAnalyzeAcceptsDataURLImages(t *testing.T) {
	svc := &stubAnalysisService{result: &model.AnalysisResult{
		Recognition: &model.RecognitionResult{Labels: []model.Label{{Description: "mug", Score: 0.8}}},
		Conversions: map[string]model.CryptoConversion{},
		Usage:       model.UsageStatus{Used: 1, Remaining: 2, Total: 3},
	}}
	body, err := json.Marshal(dto.AnalyzeRequestDTO{
		ImageBase64: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	})
	require.NoError(t, err)

	rec := performAnalyze(t, svc, string(body))

	assert.Equal(t, http.StatusOK, rec.Code)
}
