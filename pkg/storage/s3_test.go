package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	f.types[aws.StringValue(in.Key)] = aws.StringValue(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StorageWithClient(fake, "documents")
	ctx := context.Background()

	n, err := store.Put(ctx, "dept_1/year_1/receipt/r.pdf", strings.NewReader("pdf"), "application/pdf")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, "application/pdf", fake.types["dept_1/year_1/receipt/r.pdf"])

	rc, err := store.Get(ctx, "dept_1/year_1/receipt/r.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "pdf", string(data))

	require.NoError(t, store.Delete(ctx, "dept_1/year_1/receipt/r.pdf"))
	_, err = store.Get(ctx, "dept_1/year_1/receipt/r.pdf")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3StorageBuffersNonSeekableStreams(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StorageWithClient(fake, "documents")

	n, err := store.Put(context.Background(), "k", io.MultiReader(strings.NewReader("ab"), strings.NewReader("cd")), "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, "abcd", string(fake.objects["k"]))
}
