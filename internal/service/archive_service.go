package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ArchiveService keeps a copy of analyzed images in object storage for
// later review. Archiving is best effort and never blocks an analysis.
type ArchiveService interface {
	Store(ctx context.Context, fp string, image []byte) (string, error)
}

type archiveService struct {
	s3Client *s3.Client
	bucket   string
	logger   zerolog.Logger
}

// NewArchiveService creates an ArchiveService writing to the given bucket.
func NewArchiveService(s3Client *s3.Client, bucket string, logger zerolog.Logger) ArchiveService {
	return &archiveService{
		s3Client: s3Client,
		bucket:   bucket,
		logger:   logger.With().Str("service", "ArchiveService").Logger(),
	}
}

// Store uploads the image under the client's fingerprint and returns the
// object key.
func (s *archiveService) Store(ctx context.Context, fp string, image []byte) (string, error) {
	key := fmt.Sprintf("analyses/%s/%s.jpg", fp, uuid.NewString())
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive image to %s: %w", key, err)
	}
	return key, nil
}
