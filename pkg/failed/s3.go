package failed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const defaultS3Region = "us-east-1"

// S3Config holds the bucket failed jobs are archived to.
type S3Config struct {
	Bucket    string `env:"FAILED_S3_BUCKET" yaml:"bucket"`
	Prefix    string `env:"FAILED_S3_PREFIX" envDefault:"failed-jobs" yaml:"prefix"`
	Region    string `env:"FAILED_S3_REGION" envDefault:"us-east-1" yaml:"region"`
	Endpoint  string `env:"FAILED_S3_ENDPOINT" yaml:"endpoint"`
	AccessKey string `env:"FAILED_S3_ACCESS_KEY" yaml:"access_key"`
	SecretKey string `env:"FAILED_S3_SECRET_KEY" yaml:"secret_key"`
	// PathStyle is required for MinIO.
	PathStyle bool `env:"FAILED_S3_PATH_STYLE" yaml:"path_style"`
}

func (c *S3Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("%w: s3 bucket and credentials are required", ErrInvalidConfig)
	}
	if c.Region == "" {
		c.Region = defaultS3Region
	}
	return nil
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink archives every failure as a JSON object:
// {prefix}/{queue}/{yyyy}/{mm}/{dd}/{record id}.json
type S3Sink struct {
	client objectPutter
	cfg    S3Config
}

// NewS3Sink creates an S3 archive sink.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3Sink{client: s3.New(s3.Options{}, opts...), cfg: cfg}, nil
}

// Log implements queue.FailureSink.
func (s *S3Sink) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	rec := NewRecord(queue, payload, cause, timeNow())
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrUploadFailed, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.key(rec)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return wrapS3Error(err)
	}
	return nil
}

func (s *S3Sink) key(rec Record) string {
	return path.Join(s.cfg.Prefix, rec.Queue, rec.FailedAt.Format("2006/01/02"), rec.ID+".json")
}

// wrapS3Error keeps the AWS error text but exposes only package sentinels.
func wrapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUploadFailed, err)
}
