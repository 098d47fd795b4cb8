// Package archive keeps a copy of fetched article markup in an S3-compatible
// bucket so a stored quiz can be traced back to the page it was built from.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/wikiquiz/server/internal/config"
	"go.uber.org/zap"
)

const contentTypeHTML = "text/html; charset=utf-8"

// ObjectAPI is the subset of the S3 client the archiver calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Archiver struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

type Option func(*Archiver)

func WithLogger(l *zap.Logger) Option {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l.Named("Archiver")
		}
	}
}

// New builds an archiver backed by the AWS SDK. Static credentials are used
// when both keys are configured, otherwise the default provider chain.
func New(ctx context.Context, cfg appcfg.ArchiveConfig, opts ...Option) (*Archiver, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("archive bucket is empty")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithClient(client, bucket, cfg.Prefix, opts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client ObjectAPI, bucket, prefix string, opts ...Option) *Archiver {
	a := &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key is the object key for pageURL: <prefix>/<sha256 hex of url>.html.
func (a *Archiver) Key(pageURL string) string {
	return ObjectKey(a.prefix, pageURL)
}

func ObjectKey(prefix, pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	name := hex.EncodeToString(sum[:]) + ".html"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Put uploads markup and returns its key.
func (a *Archiver) Put(ctx context.Context, pageURL, markup string) (string, error) {
	key := a.Key(pageURL)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(markup),
		ContentType: aws.String(contentTypeHTML),
		Metadata:    map[string]string{"source-url": pageURL},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Debug("article archived", zap.String("key", key), zap.Int("bytes", len(markup)))
	return key, nil
}

// Delete removes an archived object. An empty key is a no-op.
func (a *Archiver) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
