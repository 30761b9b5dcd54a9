package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/foodgram-app/backend/config"
)

// extensions by sniffed content type; doubles as the allowed set.
var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
}

// ImageStore persists image blobs and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
}

// S3ImageStore stores images in the configured S3 bucket.
type S3ImageStore struct {
	cfg *config.S3Config
}

func NewS3ImageStore(cfg *config.S3Config) *S3ImageStore {
	return &S3ImageStore{cfg: cfg}
}

func (s *S3ImageStore) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := s.cfg.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.cfg.BucketName, key), nil
}

// ImageService turns client image payloads into stored blobs.
type ImageService struct {
	store ImageStore
}

func NewImageService(store ImageStore) *ImageService {
	return &ImageService{store: store}
}

// StoreDataURI decodes a "data:<mime>;base64,<payload>" string, checks
// that the decoded bytes really are an allowed image format, and stores
// them under a generated filename. The extension comes from the sniffed
// content, not from the claimed MIME type.
func (s *ImageService) StoreDataURI(ctx context.Context, dataURI string) (string, error) {
	payload, err := splitDataURI(dataURI)
	if err != nil {
		return "", err
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", newValidationError("image", "invalid base64 image data")
	}

	sniffed := http.DetectContentType(decoded)
	ext, ok := imageExtensions[sniffed]
	if !ok {
		return "", newValidationError("image", fmt.Sprintf("unsupported image type %s", sniffed))
	}

	key := fmt.Sprintf("recipes/%s.%s", uuid.New(), ext)
	return s.store.Upload(ctx, decoded, key, sniffed)
}

// StoreUpload stores a directly uploaded image after the same format check.
func (s *ImageService) StoreUpload(ctx context.Context, data []byte) (string, error) {
	sniffed := http.DetectContentType(data)
	ext, ok := imageExtensions[sniffed]
	if !ok {
		return "", newValidationError("image", fmt.Sprintf("unsupported image type %s", sniffed))
	}

	key := fmt.Sprintf("recipes/%s.%s", uuid.New(), ext)
	return s.store.Upload(ctx, data, key, sniffed)
}

func splitDataURI(dataURI string) (payload string, err error) {
	if !strings.HasPrefix(dataURI, "data:") || !strings.Contains(dataURI, ";base64,") {
		return "", newValidationError("image", "expected a base64 data URI")
	}
	header, payload, _ := strings.Cut(dataURI, ";base64,")
	mimeType := strings.TrimPrefix(header, "data:")
	if _, ok := imageExtensions[mimeType]; !ok {
		return "", newValidationError("image", fmt.Sprintf("unsupported image type %s", mimeType))
	}
	return payload, nil
}

// IsDataURI reports whether the string looks like an embedded image
// rather than an already-stored URL.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}
