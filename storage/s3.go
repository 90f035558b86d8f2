package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3UploaderConfig describes an S3-compatible bucket. For Cloudflare R2 set
// AccountID and leave Endpoint empty.
type S3UploaderConfig struct {
	AccountID       string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
	UsePathStyle    bool
}

func (c S3UploaderConfig) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.AccountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}
	return ""
}

func (c S3UploaderConfig) validate() error {
	if c.endpoint() == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.BucketName == "" || c.PublicBaseURL == "" {
		return errors.New("invalid object storage configuration: endpoint (or account id), credentials, bucket and public base URL are required")
	}
	if _, err := url.Parse(c.PublicBaseURL); err != nil {
		return fmt.Errorf("invalid public base URL %q: %w", c.PublicBaseURL, err)
	}
	return nil
}

type s3Uploader struct {
	s3Client      *s3.Client
	bucketName    string
	publicBaseURL string
}

func NewS3Uploader(ctx context.Context, cfg S3UploaderConfig) (FileUploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "auto" // R2 signs with the "auto" region
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	endpoint := cfg.endpoint()
	s3Client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &s3Uploader{
		s3Client:      s3Client,
		bucketName:    cfg.BucketName,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	result, err := u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucketName),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object (key: %s): %w", key, err)
	}

	etag := ""
	if result.ETag != nil {
		// ETag приходит в двойных кавычках.
		etag = strings.Trim(*result.ETag, "\"")
	}

	return &UploadResult{
		Key:      key,
		Location: u.GetPublicURL(key),
		ETag:     etag,
	}, nil
}

func (u *s3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object (key: %s): %w", key, err)
	}
	return nil
}

func (u *s3Uploader) GetPublicURL(key string) string {
	return publicURL(u.publicBaseURL, key)
}

func publicURL(base, key string) string {
	if base == "" || key == "" {
		return ""
	}
	joined, err := url.JoinPath(base, strings.TrimPrefix(key, "/"))
	if err != nil {
		return ""
	}
	return joined
}
