package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/metrics"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/model"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ObjectStore is the image bucket.
type ObjectStore interface {
	Bucket() string
	Exists(ctx context.Context, key string) (bool, error)
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

type s3ObjectStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3ObjectStore returns an ObjectStore over bucket.
func NewS3ObjectStore(client *s3.Client, bucket string) ObjectStore {
	return &s3ObjectStore{client: client, presign: s3.NewPresignClient(client), bucket: bucket}
}

func (o *s3ObjectStore) Bucket() string { return o.bucket }

func (o *s3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, err)
}

func (o *s3ObjectStore) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := o.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign upload %s: %w", key, err)
	}
	return req.URL, nil
}

// UploadTarget tells the client where to PUT an image.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	ImagePath string `json:"imagePath"`
	ItemID    string `json:"docId"`
}

// ImageService classifies uploaded clothing photos.
type ImageService interface {
	CreateUploadURL(ctx context.Context, userID, filename, contentType string) (*UploadTarget, error)
	// AnalyzeImage labels the image at imagePath and stores the result on
	// itemID. It consumes one image upload from the user's weekly quota.
	AnalyzeImage(ctx context.Context, userID, imagePath, itemID string) (*model.ImageAnalysis, error)
}

type imageService struct {
	store    ObjectStore
	labeler  Labeler
	wardrobe repository.WardrobeRepository
	quota    QuotaService
	logger   zerolog.Logger
}

func NewImageService(store ObjectStore, labeler Labeler, wardrobe repository.WardrobeRepository, quota QuotaService, logger zerolog.Logger) ImageService {
	return &imageService{
		store:    store,
		labeler:  labeler,
		wardrobe: wardrobe,
		quota:    quota,
		logger:   logger.With().Str("service", "ImageService").Logger(),
	}
}

func (s *imageService) CreateUploadURL(ctx context.Context, userID, filename, contentType string) (*UploadTarget, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrInvalidInput, contentType)
	}
	itemID := uuid.NewString()
	key := fmt.Sprintf("%s/%s%s", userID, itemID, strings.ToLower(path.Ext(filename)))
	url, err := s.store.PresignUpload(ctx, key, contentType)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to presign image upload")
		metrics.UpstreamFailuresTotal.WithLabelValues("storage").Inc()
		return nil, upstream("storage", err)
	}
	return &UploadTarget{UploadURL: url, ImagePath: key, ItemID: itemID}, nil
}

func (s *imageService) AnalyzeImage(ctx context.Context, userID, imagePath, itemID string) (*model.ImageAnalysis, error) {
	var analysis *model.ImageAnalysis
	err := s.quota.CheckAndConsumeImageUploadQuota(ctx, userID, func(ctx context.Context) error {
		// Keys are minted as "<userID>/<itemID><ext>" by CreateUploadURL.
		if !strings.HasPrefix(imagePath, userID+"/") {
			s.logger.Warn().Str("user_id", userID).Str("image_path", imagePath).Msg("Image path outside the caller's prefix")
			return fmt.Errorf("image %s: %w", imagePath, ErrNotFound)
		}
		exists, err := s.store.Exists(ctx, imagePath)
		if err != nil {
			s.logger.Error().Err(err).Str("image_path", imagePath).Msg("Failed to check image in storage")
			metrics.UpstreamFailuresTotal.WithLabelValues("storage").Inc()
			return upstream("storage", err)
		}
		if !exists {
			return fmt.Errorf("image %s: %w", imagePath, ErrNotFound)
		}

		labels, err := s.labeler.DetectLabels(ctx, s.store.Bucket(), imagePath)
		if err != nil {
			s.logger.Error().Err(err).Str("image_path", imagePath).Msg("Labeler failed")
			metrics.UpstreamFailuresTotal.WithLabelValues("labeler").Inc()
			return upstream("labeler", err)
		}
		analysis = AnalyzeLabels(labels)

		if err := s.wardrobe.SaveAnalysis(ctx, userID, itemID, imagePath, analysis); err != nil {
			s.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to store image analysis")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("item_id", itemID).Str("category", analysis.Category).Msg("Image analyzed")
	return analysis, nil
}
