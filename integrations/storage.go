package integrations

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AudioStore persists synthesized audio and hands back a public URL that
// Twilio's <Play> TwiML can fetch.
type AudioStore interface {
	UploadAudio(ctx context.Context, key string, data []byte) (string, error)
}

// S3Client defines the S3 operations the audio store uses. The interface
// allows mocking in tests without AWS infrastructure.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Verify that the real S3 client implements our interface
var _ S3Client = (*s3.Client)(nil)

// S3AudioStore uploads audio objects to a public bucket.
type S3AudioStore struct {
	client  S3Client
	bucket  string
	baseURL string
}

// NewS3AudioStore creates an audio store over the given bucket. baseURL is
// the public prefix objects are served from (CDN or bucket website URL).
func NewS3AudioStore(client S3Client, bucket, baseURL string) *S3AudioStore {
	return &S3AudioStore{client: client, bucket: bucket, baseURL: baseURL}
}

// UploadAudio stores MP3 bytes under key and returns the public URL.
func (s *S3AudioStore) UploadAudio(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("audio/mpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio object %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}
