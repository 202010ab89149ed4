package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price estimate provenance values.
const (
	PriceSourceSearch     = "search"
	PriceSourceAIEstimate = "ai_estimate"
)

// Label is a single recognition label with its confidence score (0–1).
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// RecognitionResult holds what the vision service identified in an image.
// Labels are ordered by descending confidence.
type RecognitionResult struct {
	Labels []Label `json:"labels"`
	Logos  []Label `json:"logos,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// TopLabel returns the highest-confidence label description, or "" when empty.
func (r *RecognitionResult) TopLabel() string {
	if r == nil || len(r.Labels) == 0 {
		return ""
	}
	return r.Labels[0].Description
}

// LabelDescriptions returns all label descriptions in confidence order.
func (r *RecognitionResult) LabelDescriptions() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Labels))
	for _, l := range r.Labels {
		out = append(out, l.Description)
	}
	return out
}

// EnrichmentResult is the AI-refined product guess built from raw
// recognition labels. Confidence is on a 0–100 scale.
type EnrichmentResult struct {
	ProductName string          `json:"product_name"`
	PriceMin    decimal.Decimal `json:"price_min"`
	PriceMax    decimal.Decimal `json:"price_max"`
	Category    string          `json:"category"`
	Confidence  int             `json:"confidence"`
}

// SearchListing is one web search result considered for price discovery.
type SearchListing struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// PriceEstimate is the single resolved retail price for an analysis.
// Source records whether the amount was observed in search listings or
// guessed by the enrichment model.
type PriceEstimate struct {
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source"`
}

// MarketRate is the current USD quote for one crypto asset.
type MarketRate struct {
	USDPrice     decimal.Decimal `json:"usd_price"`
	USD24hChange float64         `json:"usd_24h_change"`
}

// CryptoConversion expresses the price estimate in one crypto asset.
type CryptoConversion struct {
	AssetID         string          `json:"asset_id"`
	USDUnitPrice    decimal.Decimal `json:"usd_unit_price"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	SourceUSDAmount decimal.Decimal `json:"source_usd_amount"`
}

// AnalysisResult is the aggregate outcome of one analysis invocation.
// Enrichment and Price are nil when those stages produced nothing; a nil
// Price with a populated Recognition is still a successful analysis.
type AnalysisResult struct {
	Recognition *RecognitionResult          `json:"recognition"`
	Enrichment  *EnrichmentResult           `json:"enrichment,omitempty"`
	Price       *PriceEstimate              `json:"price,omitempty"`
	Conversions map[string]CryptoConversion `json:"conversions"`
	Usage       UsageStatus                 `json:"usage"`
	AnalyzedAt  time.Time                   `json:"analyzed_at"`
}
