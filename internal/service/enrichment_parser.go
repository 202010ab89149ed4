package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"app/internal/model"

	"github.com/shopspring/decimal"
)

// Conservative defaults for enrichment fields the model response does not
// supply in a usable form.
const (
	defaultEnrichmentConfidence = 50
	defaultEnrichmentCategory   = "general"
)

var (
	defaultPriceMin = decimal.NewFromInt(1)
	defaultPriceMax = decimal.NewFromInt(50)
)

var (
	nameRe       = regexp.MustCompile(`(?i)product[\s_]*name\s*[:\-]\s*"?([^"\n.,{}]+)`)
	priceMinRe   = regexp.MustCompile(`(?i)price[\s_]*min\w*\s*[:\-=]\s*"?\$?\s*([0-9]+(?:\.[0-9]+)?)`)
	priceMaxRe   = regexp.MustCompile(`(?i)price[\s_]*max\w*\s*[:\-=]\s*"?\$?\s*([0-9]+(?:\.[0-9]+)?)`)
	priceRangeRe = regexp.MustCompile(`\$?\s*([0-9]+(?:\.[0-9]+)?)\s*(?:-|–|to)\s*\$?\s*([0-9]+(?:\.[0-9]+)?)`)
	categoryRe   = regexp.MustCompile(`(?i)category\s*[:\-]\s*"?([a-zA-Z][a-zA-Z &/]*)`)
	confidenceRe = regexp.MustCompile(`(?i)confidence\W{0,3}([0-9]{1,3})`)
)

// parseEnrichment turns a loosely-structured model response into an
// EnrichmentResult. It is a two-stage, total parser: strict JSON decoding
// first, pattern extraction with conservative defaults otherwise. It never
// fails; fallbackName fills in when no product name can be located.
func parseEnrichment(text, fallbackName string) *model.EnrichmentResult {
	if result, ok := decodeEnrichmentJSON(text, fallbackName); ok {
		return result
	}
	return extractEnrichment(text, fallbackName)
}

type enrichmentPayload struct {
	ProductName string      `json:"product_name"`
	PriceMin    json.Number `json:"price_min"`
	PriceMax    json.Number `json:"price_max"`
	Category    string      `json:"category"`
	Confidence  json.Number `json:"confidence"`
}

// decodeEnrichmentJSON attempts a strict decode of the first {...} block in
// the text. Models routinely wrap the object in prose or a code fence, so
// the block is cut out before decoding.
func decodeEnrichmentJSON(text, fallbackName string) (*model.EnrichmentResult, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload enrichmentPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, false
	}

	result := &model.EnrichmentResult{
		ProductName: strings.TrimSpace(payload.ProductName),
		PriceMin:    decimalOr(payload.PriceMin.String(), defaultPriceMin),
		PriceMax:    decimalOr(payload.PriceMax.String(), defaultPriceMax),
		Category:    strings.TrimSpace(payload.Category),
		Confidence:  confidenceOr(payload.Confidence.String()),
	}
	if result.ProductName == "" {
		result.ProductName = fallbackName
	}
	if result.Category == "" {
		result.Category = defaultEnrichmentCategory
	}
	return result, true
}

// extractEnrichment is the best-effort stage: pattern-based field extraction
// over the raw text, defaulting every field it cannot locate.
func extractEnrichment(text, fallbackName string) *model.EnrichmentResult {
	result := &model.EnrichmentResult{
		ProductName: fallbackName,
		PriceMin:    defaultPriceMin,
		PriceMax:    defaultPriceMax,
		Category:    defaultEnrichmentCategory,
		Confidence:  defaultEnrichmentConfidence,
	}

	if m := nameRe.FindStringSubmatch(text); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			result.ProductName = name
		}
	}

	minMatch := priceMinRe.FindStringSubmatch(text)
	maxMatch := priceMaxRe.FindStringSubmatch(text)
	switch {
	case minMatch != nil && maxMatch != nil:
		result.PriceMin = decimalOr(minMatch[1], defaultPriceMin)
		result.PriceMax = decimalOr(maxMatch[1], defaultPriceMax)
	default:
		if m := priceRangeRe.FindStringSubmatch(text); m != nil {
			result.PriceMin = decimalOr(m[1], defaultPriceMin)
			result.PriceMax = decimalOr(m[2], defaultPriceMax)
		}
	}

	if m := categoryRe.FindStringSubmatch(text); m != nil {
		if category := strings.ToLower(strings.TrimSpace(m[1])); category != "" {
			result.Category = category
		}
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		result.Confidence = confidenceOr(m[1])
	}

	return result
}

func decimalOr(raw string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return fallback
	}
	return d
}

func confidenceOr(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultEnrichmentConfidence
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
