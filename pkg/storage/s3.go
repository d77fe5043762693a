package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/noah-isme/academic-approval-api/pkg/config"
)

// S3Storage keeps document blobs in an S3-compatible bucket.
type S3Storage struct {
	client s3iface.S3API
	bucket string
}

// NewS3Storage opens a session against the configured bucket.
func NewS3Storage(cfg config.S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}

	return NewS3StorageWithClient(s3.New(sess), cfg.Bucket), nil
}

// NewS3StorageWithClient wires an existing client, e.g. a test double.
func NewS3StorageWithClient(client s3iface.S3API, bucket string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket}
}

// Put uploads the stream under key.
func (s *S3Storage) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	var size int64
	body, ok := r.(io.ReadSeeker)
	if ok {
		end, err := body.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("measure upload stream: %w", err)
		}
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("rewind upload stream: %w", err)
		}
		size = end
	} else {
		// PutObject signs the payload, so non-seekable streams are buffered.
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, fmt.Errorf("read upload stream: %w", err)
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return 0, fmt.Errorf("put s3 object: %w", err)
	}
	return size, nil
}

// Get streams the object body. Callers must close it.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("get s3 object: %w", ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object. Missing keys are not an error in S3.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete s3 object: %w", err)
	}
	return nil
}

// Driver names the backend.
func (s *S3Storage) Driver() string { return "s3" }
