package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/provstream/internal/ir"
)

// DefaultRegion is used when S3Config.Region is empty.
const DefaultRegion = "us-east-1"

// S3Config configures an S3Sink. Credentials fall back to the default AWS
// chain when AccessKeyID is empty.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // optional; S3-compatible endpoint such as MinIO
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// HTTPClient overrides the transport; nil uses the SDK default.
	HTTPClient *http.Client
	// MaxAttempts overrides the SDK retry attempts when positive.
	MaxAttempts int
}

// S3Sink writes objects to one bucket below a key prefix.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates a sink from cfg.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, ir.ConfigurationError("s3 bucket required", nil)
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, ir.ConfigurationError("load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Bucket returns the target bucket.
func (s *S3Sink) Bucket() string { return s.bucket }

// ObjectKey returns the bucket key for an archive key.
func (s *S3Sink) ObjectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put uploads body. A non-2xx response is a ResponseError carrying the HTTP
// status; any other failure is a ConnectivityError.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	objectKey := s.ObjectKey(key)
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &objectKey,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return classifyS3Error(fmt.Sprintf("put s3://%s/%s", s.bucket, objectKey), err)
	}
	return nil
}

func classifyS3Error(op string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		e := ir.ResponseError(respErr.HTTPStatusCode(), op)
		e.Err = err
		return e
	}
	return ir.ConnectivityError(op, err)
}
