package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/fingerprint"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Error kinds the UI branches on.
const (
	errKindBadRequest       = "bad_request"
	errKindQuotaExceeded    = "quota_exceeded"
	errKindRecognition      = "recognition_unavailable"
	errKindStoreUnavailable = "store_unavailable"
	errKindAnalysisFailed   = "analysis_failed"
)

type AnalyzeHandler struct {
	analysisService service.AnalysisService
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewAnalyzeHandler(analysisService service.AnalysisService, v *validator.Validate, logger zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analysisService: analysisService,
		validate:        v,
		logger:          logger.With().Str("handler", "AnalyzeHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 analyze routes
func (h *AnalyzeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/analyze", h.analyze)
}

func (h *AnalyzeHandler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errKindBadRequest, "Method not allowed", nil)
		return
	}

	var req dto.AnalyzeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errKindBadRequest, "Invalid JSON payload: "+err.Error(), nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, errKindBadRequest, "Validation failed: "+err.Error(), nil)
		return
	}

	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errKindBadRequest, "Invalid image payload: "+err.Error(), nil)
		return
	}

	result, err := h.analysisService.Analyze(r.Context(), image, signalsFromDTO(req.Signals), req.AssetIDs)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponseFromModel(result))
}

// writeAnalysisError maps typed pipeline errors onto HTTP statuses and
// error kinds. Exactly one human-readable message per attempt.
func (h *AnalyzeHandler) writeAnalysisError(w http.ResponseWriter, err error) {
	var quotaErr *repository.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		resetAt := quotaErr.ResetAt
		writeError(w, http.StatusTooManyRequests, errKindQuotaExceeded,
			"Daily analysis limit reached. Try again after the reset.", &resetAt)
	case errors.Is(err, repository.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, errKindStoreUnavailable,
			"Usage tracking is temporarily unavailable. Please try again shortly.", nil)
	case errors.Is(err, service.ErrRecognitionUnavailable):
		writeError(w, http.StatusUnprocessableEntity, errKindRecognition,
			"Could not identify anything in the image. Try a clearer photo.", nil)
	default:
		h.logger.Error().Err(err).Msg("Analysis failed")
		writeError(w, http.StatusInternalServerError, errKindAnalysisFailed,
			"Analysis failed. Please try again.", nil)
	}
}

// decodeImage accepts plain base64 as well as browser data URLs
// (data:image/jpeg;base64,...).
func decodeImage(raw string) ([]byte, error) {
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	return image, nil
}

func signalsFromDTO(s dto.ClientSignalsDTO) fingerprint.Signals {
	return fingerprint.Signals{
		UserAgent:             s.UserAgent,
		Language:              s.Language,
		Platform:              s.Platform,
		ScreenWidth:           s.ScreenWidth,
		ScreenHeight:          s.ScreenHeight,
		TimezoneOffsetMinutes: s.TimezoneOffsetMinutes,
		CanvasSignature:       s.CanvasSignature,
	}
}

func analyzeResponseFromModel(result *model.AnalysisResult) dto.AnalyzeResponseDTO {
	resp := dto.AnalyzeResponseDTO{
		Recognition: dto.RecognitionDTO{
			Labels: labelsToDTO(result.Recognition.Labels),
			Logos:  labelsToDTO(result.Recognition.Logos),
			Text:   result.Recognition.Text,
		},
		Conversions: make(map[string]dto.ConversionDTO, len(result.Conversions)),
		Usage: dto.UsageDTO{
			Used:      result.Usage.Used,
			Remaining: result.Usage.Remaining,
			Total:     result.Usage.Total,
			ResetAt:   result.Usage.ResetAt,
		},
		AnalyzedAt: result.AnalyzedAt,
	}
	if result.Enrichment != nil {
		resp.Enrichment = &dto.EnrichmentDTO{
			ProductName: result.Enrichment.ProductName,
			PriceMin:    result.Enrichment.PriceMin.String(),
			PriceMax:    result.Enrichment.PriceMax.String(),
			Category:    result.Enrichment.Category,
			Confidence:  result.Enrichment.Confidence,
		}
	}
	if result.Price != nil {
		resp.Price = &dto.PriceEstimateDTO{
			Amount: result.Price.Amount.String(),
			Source: result.Price.Source,
		}
	}
	for id, conv := range result.Conversions {
		resp.Conversions[id] = dto.ConversionDTO{
			AssetID:         conv.AssetID,
			USDUnitPrice:    conv.USDUnitPrice.String(),
			ConvertedAmount: conv.ConvertedAmount.String(),
			SourceUSDAmount: conv.SourceUSDAmount.String(),
		}
	}
	return resp
}

func labelsToDTO(labels []model.Label) []dto.LabelDTO {
	if labels == nil {
		return nil
	}
	out := make([]dto.LabelDTO, 0, len(labels))
	for _, l := range labels {
		out = append(out, dto.LabelDTO{Description: l.Description, Score: l.Score})
	}
	return out
}
