package dto

import "time"

// ClientSignalsDTO carries the environment signals the browser collects for
// fingerprinting. Every field is optional.
type ClientSignalsDTO struct {
	UserAgent             string `json:"user_agent"`
	Language              string `json:"language"`
	Platform              string `json:"platform"`
	ScreenWidth           int    `json:"screen_width"`
	ScreenHeight          int    `json:"screen_height"`
	TimezoneOffsetMinutes int    `json:"timezone_offset_minutes"`
	CanvasSignature       string `json:"canvas_signature"`
}

// AnalyzeRequestDTO is the incoming analyze request. The image is base64
// encoded, optionally as a browser data URL.
type AnalyzeRequestDTO struct {
	ImageBase64 string           `json:"image_base64" validate:"required"`
	AssetIDs    []string         `json:"asset_ids" validate:"omitempty,max=10,dive,min=1"`
	Signals     ClientSignalsDTO `json:"signals"`
}

// LabelDTO is one recognition label with its confidence score (0–1).
type LabelDTO struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// RecognitionDTO summarizes what the vision service saw.
type RecognitionDTO struct {
	Labels []LabelDTO `json:"labels"`
	Logos  []LabelDTO `json:"logos,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// EnrichmentDTO is the AI product guess. Prices are decimal strings.
type EnrichmentDTO struct {
	ProductName string `json:"product_name"`
	PriceMin    string `json:"price_min"`
	PriceMax    string `json:"price_max"`
	Category    string `json:"category"`
	Confidence  int    `json:"confidence"`
}

// PriceEstimateDTO is the resolved price with its provenance: "search" for a
// market-observed price, "ai_estimate" for a model guess.
type PriceEstimateDTO struct {
	Amount string `json:"amount"`
	Source string `json:"source"`
}

// ConversionDTO expresses the price estimate in one crypto asset.
type ConversionDTO struct {
	AssetID         string `json:"asset_id"`
	USDUnitPrice    string `json:"usd_unit_price"`
	ConvertedAmount string `json:"converted_amount"`
	SourceUSDAmount string `json:"source_usd_amount"`
}

// UsageDTO is the quota snapshot after this analysis.
type UsageDTO struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}

// AnalyzeResponseDTO is the aggregate success payload. Enrichment and Price
// are omitted when those stages produced nothing; that is still a success.
type AnalyzeResponseDTO struct {
	Recognition RecognitionDTO           `json:"recognition"`
	Enrichment  *EnrichmentDTO           `json:"enrichment,omitempty"`
	Price       *PriceEstimateDTO        `json:"price,omitempty"`
	Conversions map[string]ConversionDTO `json:"conversions"`
	Usage       UsageDTO                 `json:"usage"`
	AnalyzedAt  time.Time                `json:"analyzed_at"`
}

// ErrorResponseDTO is the single error shape for every failed request. The
// UI branches on Kind.
type ErrorResponseDTO struct {
	Error   string     `json:"error"`
	Kind    string     `json:"kind"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}
