package failed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	err    error
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestNewS3Sink_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{"missing bucket", S3Config{AccessKey: "k", SecretKey: "s"}, true},
		{"missing access key", S3Config{Bucket: "b", SecretKey: "s"}, true},
		{"missing secret", S3Config{Bucket: "b", AccessKey: "k"}, true},
		{"valid", S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}, false},
		{"custom endpoint", S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "http://localhost:9000", PathStyle: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sink, err := NewS3Sink(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Nil(t, sink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultS3Region, sink.cfg.Region)
		})
	}
}

func TestS3Sink_Log(t *testing.T) {
	t.Parallel()

	putter := &fakePutter{}
	sink := &S3Sink{client: putter, cfg: S3Config{Bucket: "archive", Prefix: "failed-jobs"}}

	require.NoError(t, sink.Log(context.Background(), "email", []byte(samplePayload), errors.New("boom")))
	require.Len(t, putter.inputs, 1)

	in := putter.inputs[0]
	assert.Equal(t, "archive", aws.ToString(in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Regexp(t, `^failed-jobs/email/\d{4}/\d{2}/\d{2}/[0-9a-f-]{36}\.json$`, aws.ToString(in.Key))
	assert.Equal(t, int64(len(putter.bodies[0])), aws.ToInt64(in.ContentLength))

	var rec Record
	require.NoError(t, json.Unmarshal(putter.bodies[0], &rec))
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, "boom", rec.Error)
}

func TestS3Sink_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}, ErrAccessDenied},
		{"bad key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, ErrAccessDenied},
		{"bucket missing", &smithy.GenericAPIError{Code: "NoSuchBucket"}, ErrUploadFailed},
		{"network", errors.New("dial tcp: refused"), ErrUploadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sink := &S3Sink{client: &fakePutter{err: tt.err}, cfg: S3Config{Bucket: "b"}}
			err := sink.Log(context.Background(), "q", []byte(samplePayload), errors.New("x"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
