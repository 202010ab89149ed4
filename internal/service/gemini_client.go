package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// EnrichmentClient refines raw recognition labels into a structured product
// guess using a generative model.
type EnrichmentClient interface {
	Enrich(ctx context.Context, image []byte, labels []string) (*model.EnrichmentResult, error)
}

type geminiClient struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	logger  zerolog.Logger
}

// NewGeminiClient creates an EnrichmentClient backed by the Gemini
// generateContent endpoint.
func NewGeminiClient(baseURL, modelName, apiKey string, timeout time.Duration, logger zerolog.Logger) EnrichmentClient {
	return &geminiClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		apiKey:  apiKey,
		logger:  logger.With().Str("service", "GeminiClient").Logger(),
	}
}

// Enrich sends the image plus candidate labels to the model and parses the
// reply into an EnrichmentResult. Only transport and non-2xx failures are
// returned as errors; any response text, however malformed, still yields a
// fully-defaulted result.
func (c *geminiClient) Enrich(ctx context.Context, image []byte, labels []string) (*model.EnrichmentResult, error) {
	fallbackName := "unknown item"
	if len(labels) > 0 {
		fallbackName = labels[0]
	}

	prompt := fmt.Sprintf(
		"You are a product identification assistant. An image classifier detected: %s. "+
			"Identify the single retail product shown in the attached photo and answer with a JSON object "+
			"using exactly these keys: product_name (string), price_min (number, USD), price_max (number, USD), "+
			"category (string), confidence (integer 0-100). Answer with the JSON object only.",
		strings.Join(labels, ", "),
	)

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
					{"inline_data": map[string]string{
						"mime_type": "image/jpeg",
						"data":      base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.2,
			"maxOutputTokens": 256,
		},
	}

	bodyJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request body: %v", ErrEnrichmentUnavailable, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrEnrichmentUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Gemini request failed")
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrEnrichmentUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			c.logger.Error().Int("status_code", resp.StatusCode).Str("message", errorResp.Error.Message).Msg("Gemini returned an error")
			return nil, fmt.Errorf("%w: %s", ErrEnrichmentUnavailable, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrEnrichmentUnavailable, resp.StatusCode)
	}

	var generateResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &generateResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEnrichmentUnavailable, err)
	}

	var text strings.Builder
	for _, cand := range generateResp.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}

	return parseEnrichment(text.String(), fallbackName), nil
}
