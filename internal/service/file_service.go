package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/pkg/storage"
)

const sniffBytes = 3072

var (
	// ErrUploadTooLarge indicates the uploaded object exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the extension or detected MIME type is not an image.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadNotFound indicates the key was never uploaded or already expired.
	ErrUploadNotFound = errors.New("uploaded file not found")
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

var allowedMimeTypes = []string{"image/jpeg", "image/png"}

// ObjectStorage abstracts the two-bucket object store holding answer images.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	TempSize(ctx context.Context, key string) (int64, error)
	TempHead(ctx context.Context, key string, size int64) ([]byte, error)
	Promote(ctx context.Context, key string) error
	Delete(ctx context.Context, keys ...string) error
}

// FileService issues upload links and moves uploaded images into permanent storage.
type FileService interface {
	UploadLink(ctx context.Context, userID uint, req dto.UploadLinkRequest) (dto.UploadLinkResponse, error)
	// Promote validates and moves every key from the temporary to the permanent bucket.
	Promote(ctx context.Context, keys []string) error
	// DownloadURL returns a presigned link, or "" when one cannot be produced.
	DownloadURL(ctx context.Context, key string) string
	// DeleteOrphans removes keys that no record references anymore. Failures are logged only.
	DeleteOrphans(ctx context.Context, keys []string)
}

type fileService struct {
	storage   ObjectStorage
	validator *validator.Validate
	logger    zerolog.Logger
	maxSize   int64
	linkTTL   time.Duration
	tracer    trace.Tracer
	now       func() time.Time
}

// NewFileService constructs the file service.
func NewFileService(storage ObjectStorage, validate *validator.Validate, maxSizeMB int, linkTTL time.Duration, logger zerolog.Logger) FileService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if linkTTL <= 0 {
		linkTTL = time.Hour
	}
	return &fileService{
		storage:   storage,
		validator: validate,
		logger:    logger.With().Str("component", "file_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		linkTTL:   linkTTL,
		tracer:    otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/file"),
		now:       time.Now,
	}
}

func (s *fileService) UploadLink(ctx context.Context, userID uint, req dto.UploadLinkRequest) (dto.UploadLinkResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UploadLinkResponse{}, err
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(req.Filename)))
	if _, ok := allowedExtensions[ext]; !ok {
		return dto.UploadLinkResponse{}, ErrUploadTypeNotAllowed
	}

	now := s.now()
	key := generateKey(now) + ext

	link, err := s.storage.PresignUpload(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to presign upload")
		return dto.UploadLinkResponse{}, err
	}

	s.logger.Debug().Uint("user_id", userID).Str("key", key).Msg("upload link issued")

	return dto.UploadLinkResponse{
		Key:        key,
		UploadLink: link,
		ExpiresAt:  now.Add(s.linkTTL).UTC(),
	}, nil
}

func (s *fileService) Promote(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "files.promote", trace.WithAttributes(attribute.Int("files.count", len(keys))))
	defer span.End()

	for _, key := range keys {
		if err := s.promoteOne(ctx, key); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "promote failed")
			return fmt.Errorf("promote %s: %w", key, err)
		}
	}

	span.SetStatus(codes.Ok, "promoted")
	return nil
}

func (s *fileService) promoteOne(ctx context.Context, key string) error {
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(key))]; !ok {
		return ErrUploadTypeNotAllowed
	}

	size, err := s.storage.TempSize(ctx, key)
	if err != nil {
		return translateStorageError(err)
	}
	if size > s.maxSize {
		return ErrUploadTooLarge
	}

	head, err := s.storage.TempHead(ctx, key, sniffBytes)
	if err != nil {
		return translateStorageError(err)
	}
	if !mimetype.EqualsAny(mimetype.Detect(head).String(), allowedMimeTypes...) {
		return ErrUploadTypeNotAllowed
	}

	if err := s.storage.Promote(ctx, key); err != nil {
		return translateStorageError(err)
	}
	return nil
}

func (s *fileService) DownloadURL(ctx context.Context, key string) string {
	link, err := s.storage.PresignDownload(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to presign download")
		return ""
	}
	return link
}

func (s *fileService) DeleteOrphans(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}

	if err := s.storage.Delete(ctx, keys...); err != nil {
		observability.OrphanDeletions().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to delete orphaned objects")
		return
	}
	observability.OrphanDeletions().WithLabelValues("deleted").Add(float64(len(keys)))
}

// generateKey derives a short unique object name from a random id and the current time.
func generateKey(now time.Time) string {
	sum := sha256.Sum256([]byte(uuid.NewString() + now.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:15]
}

func translateStorageError(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return ErrUploadNotFound
	}
	return err
}
