package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// RecognitionClient identifies objects, logos and text in an image.
type RecognitionClient interface {
	Recognize(ctx context.Context, image []byte) (*model.RecognitionResult, error)
}

type visionClient struct {
	svc     *vision.Service
	timeout time.Duration
	logger  zerolog.Logger
}

// NewVisionClient creates a RecognitionClient backed by the Google Vision API.
func NewVisionClient(ctx context.Context, apiKey string, timeout time.Duration, logger zerolog.Logger) (RecognitionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision API key cannot be empty")
	}
	svc, err := vision.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision service: %w", err)
	}
	return &visionClient{
		svc:     svc,
		timeout: timeout,
		logger:  logger.With().Str("service", "VisionClient").Logger(),
	}, nil
}

// Recognize annotates the image with labels, logos and text. A response
// without a single label is treated as "nothing identifiable" and reported
// as ErrRecognitionUnavailable.
func (c *visionClient) Recognize(ctx context.Context, image []byte) (*model.RecognitionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []*vision.Feature{
					{Type: "LABEL_DETECTION", MaxResults: 10},
					{Type: "LOGO_DETECTION", MaxResults: 5},
					{Type: "TEXT_DETECTION", MaxResults: 1},
				},
			},
		},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		c.logger.Error().Err(err).Msg("Vision annotate call failed")
		return nil, fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty annotate response", ErrRecognitionUnavailable)
	}
	ann := resp.Responses[0]
	if ann.Error != nil {
		c.logger.Error().Int64("status", ann.Error.Code).Msg("Vision returned an annotation error")
		return nil, fmt.Errorf("%w: %s", ErrRecognitionUnavailable, ann.Error.Message)
	}

	result := &model.RecognitionResult{}
	for _, l := range ann.LabelAnnotations {
		result.Labels = append(result.Labels, model.Label{Description: l.Description, Score: l.Score})
	}
	for _, l := range ann.LogoAnnotations {
		result.Logos = append(result.Logos, model.Label{Description: l.Description, Score: l.Score})
	}
	if len(ann.TextAnnotations) > 0 {
		result.Text = ann.TextAnnotations[0].Description
	}

	if len(result.Labels) == 0 {
		return nil, fmt.Errorf("%w: no labels detected", ErrRecognitionUnavailable)
	}
	return result, nil
}
