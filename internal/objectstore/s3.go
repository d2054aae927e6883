package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/walguard/walguard/internal/common"
	"github.com/walguard/walguard/internal/logging"
)

// S3Store is a Store backed by an S3-compatible bucket, namespaced under an
// optional key prefix, with bounded retry on every operation.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewS3Store builds an S3Store from cfg. Endpoint is optional; when set, the
// client talks to that endpoint in path-style mode instead of resolving a
// regional AWS endpoint, so the same code works against MinIO or any other
// S3-compatible service.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, common.New(common.ErrObjectStore, "bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, common.Wrap(common.ErrObjectStore, "load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    logging.Component("objectstore"),
	}, nil
}

func (s *S3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) relativeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// Put uploads data to key, overwriting any existing object. Puts are
// idempotent: retrying a partially-failed put simply re-uploads the same
// bytes under the same key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	err := withRetry(ctx, s.log, "put "+key, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fullKey(key)),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return common.Wrap(common.ErrObjectStore, "put "+key, err)
	}
	return nil
}

// Get fetches the object at key, returning ErrNotFound if it doesn't exist.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, s.log, "get "+key, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fullKey(key)),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		body, readErr := io.ReadAll(out.Body)
		if readErr != nil {
			return readErr
		}
		data = body
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, common.Wrap(common.ErrObjectStore, "get "+key, err)
	}
	return data, nil
}

// Delete removes key. A missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	err := withRetry(ctx, s.log, "delete "+key, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.fullKey(key)),
		})
		return err
	})
	if err != nil && !isNotFound(err) {
		return common.Wrap(common.ErrObjectStore, "delete "+key, err)
	}
	return nil
}

// DeleteAll removes every key in keys in a single batch request (S3 allows
// up to 1000 objects per call; callers are expected to stay under that for
// a single generation's worth of segments).
func (s *S3Store) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(s.fullKey(k))})
	}
	err := withRetry(ctx, s.log, "delete_all", func() error {
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		return err
	})
	if err != nil {
		return common.Wrap(common.ErrObjectStore, "delete_all", err)
	}
	return nil
}

// List returns keys under prefix, relative to the store's configured
// prefix, sorted lexicographically.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := withRetry(ctx, s.log, "list "+prefix, func() error {
		keys = nil
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.fullKey(prefix)),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, obj := range page.Contents {
				keys = append(keys, s.relativeKey(aws.ToString(obj.Key)))
			}
		}
		return nil
	})
	if err != nil {
		return nil, common.Wrap(common.ErrObjectStore, "list "+prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
