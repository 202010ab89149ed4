package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

type UsageHandler struct {
	analysisService service.AnalysisService
	logger          zerolog.Logger
}

func NewUsageHandler(analysisService service.AnalysisService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		analysisService: analysisService,
		logger:          logger.With().Str("handler", "UsageHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 usage routes
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/usage", h.getUsage)
}

// getUsage reports the caller's quota snapshot. POST because the client
// signals travel in the body.
func (h *UsageHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errKindBadRequest, "Method not allowed", nil)
		return
	}

	var req dto.UsageRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errKindBadRequest, "Invalid JSON payload: "+err.Error(), nil)
		return
	}

	status := h.analysisService.Usage(r.Context(), signalsFromDTO(req.Signals))
	writeJSON(w, http.StatusOK, dto.UsageResponseDTO{
		Used:      status.Used,
		Remaining: status.Remaining,
		Total:     status.Total,
		ResetAt:   status.ResetAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string, resetAt *time.Time) {
	writeJSON(w, status, dto.ErrorResponseDTO{Error: message, Kind: kind, ResetAt: resetAt})
}
