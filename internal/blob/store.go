// Package blob stores uploaded resume documents in an S3 compatible bucket.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Config holds credentials and addressing for the bucket. When AccountID is
// set the client targets a Cloudflare R2 endpoint, otherwise plain S3.
type Config struct {
	AccountID string `mapstructure:"account_id"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store persists and enumerates resume objects for screening batches.
type Store struct {
	client objectAPI
	bucket string
	logger *zap.Logger
}

// NewStore builds an S3 client from static credentials and returns a Store
// bound to the configured bucket.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is not configured")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("building aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AccountID != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		}
	})

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Put uploads data under the given key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}

	s.logger.Debug("object uploaded", zap.String("key", key), zap.Int("size", len(data)))

	return nil
}

// Get downloads the object stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	return data, nil
}

// List returns the object names under prefix with the prefix stripped, so a
// batch prefix yields the bare resume filenames.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string

	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, prefix)
			if name == "" {
				continue
			}
			names = append(names, name)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	return names, nil
}

// DeletePrefix removes every object under prefix. Used when a job is deleted.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	names, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, name := range names {
		key := prefix + name
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}

	s.logger.Debug("prefix deleted", zap.String("prefix", prefix), zap.Int("objects", len(names)))

	return nil
}
