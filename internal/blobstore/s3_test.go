package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakePutter{}
	store := newS3Store(fake, Config{Endpoint: "http://127.0.0.1:9000/", Bucket: "tandem"})

	url, err := store.Put(context.Background(), "audio/a_b/01J.webm", "audio/webm", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/tandem/audio/a_b/01J.webm", url)

	assert.Equal(t, "tandem", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "audio/a_b/01J.webm", aws.ToString(fake.in.Key))
	assert.Equal(t, "audio/webm", aws.ToString(fake.in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.in.ContentLength))
	assert.Equal(t, []byte("data"), fake.body)
}

func TestS3Store_PutError(t *testing.T) {
	boom := errors.New("access denied")
	store := newS3Store(&fakePutter{err: boom}, Config{Endpoint: "http://minio", Bucket: "b"})

	_, err := store.Put(context.Background(), "k", "image/png", []byte("x"))
	assert.ErrorIs(t, err, boom)
}

func TestS3Store_URLEscapesSegments(t *testing.T) {
	store := newS3Store(&fakePutter{}, Config{Region: "eu-central-1", Bucket: "b"})
	assert.Equal(t, "https://s3.eu-central-1.amazonaws.com/b/memories/a%20b/x.png", store.URL("memories/a b/x.png"))
}

func TestNewS3_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err := NewS3(context.Background(), Config{Region: "us-east-1", Bucket: "b"})
	assert.ErrorContains(t, err, "loading aws config")
}
