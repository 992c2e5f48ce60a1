package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/logging"
)

// OriginalSizeMetadata is the object metadata key carrying the declared size
// of a presigned upload.
const OriginalSizeMetadata = "original-size"

// R2Config contains configuration for Cloudflare R2 storage.
type R2Config struct {
	// AccountID selects the account endpoint when Endpoint is empty.
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Region defaults to "auto".
	Region string
	// Endpoint overrides https://<account>.r2.cloudflarestorage.com.
	Endpoint string
	// PresignTTL is how long upload URLs remain valid.
	PresignTTL time.Duration
	// MaxFileSize is the largest object accepted (0 means no limit).
	MaxFileSize int64
}

// DefaultR2Config returns a configuration with the upload defaults.
func DefaultR2Config(accountID, bucket string) R2Config {
	return R2Config{
		AccountID:   accountID,
		Bucket:      bucket,
		Region:      "auto",
		PresignTTL:  60 * time.Second,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// EndpointURL returns the S3 API endpoint for the configuration.
func (c R2Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// R2Store implements Store on Cloudflare R2 through its S3 API.
type R2Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	config        R2Config
	log           *zap.Logger
}

// Compile-time check that R2Store implements Store.
var _ Store = (*R2Store)(nil)

// NewR2Store creates an R2 storage backend with static credentials and
// path-style addressing.
func NewR2Store(ctx context.Context, cfg R2Config, log *zap.Logger) (*R2Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("r2: bucket is required")
	}
	if cfg.AccountID == "" && cfg.Endpoint == "" {
		return nil, errors.New("r2: account id or endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 60 * time.Second
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL())
		o.UsePathStyle = true
	})

	return &R2Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		config:        cfg,
		log:           logging.OrNop(log),
	}, nil
}

// Put uploads an object. r should be seekable (an *os.File or bytes.Reader)
// so the request payload can be signed.
func (s *R2Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.config.MaxFileSize > 0 && size > s.config.MaxFileSize {
		return fmt.Errorf("%w: max size is %d bytes", ErrFileTooLarge, s.config.MaxFileSize)
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.config.Bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: map[string]string{OriginalSizeMetadata: strconv.FormatInt(size, 10)},
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.log.Debug("uploaded object", zap.String("bucket", s.config.Bucket), zap.String("key", key), zap.Int64("size", size))
	return nil
}

// PresignPut generates a presigned PUT URL valid for the configured TTL.
// The signed request carries the declared size as object metadata.
func (s *R2Store) PresignPut(ctx context.Context, req PresignRequest) (string, error) {
	if err := checkPresign(req, s.config.MaxFileSize); err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.config.Bucket),
		Key:      aws.String(req.Key),
		Metadata: map[string]string{OriginalSizeMetadata: strconv.FormatInt(req.Size, 10)},
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	presigned, err := s.presignClient.PresignPutObject(ctx, input, s3.WithPresignExpires(s.config.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presigned.URL, nil
}

// Exists reports whether an object is stored under key.
func (s *R2Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return true, nil
}
