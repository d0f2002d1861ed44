package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObject struct {
	body     []byte
	modified time.Time
}

// mockS3Client keeps objects in memory and records the bucket used.
type mockS3Client struct {
	objects map[string]mockObject
	buckets []string
	copies  []string
	now     time.Time
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string]mockObject), now: time.Now()}
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	m.buckets = append(m.buckets, *in.Bucket)
	m.objects[*in.Key] = mockObject{body: body, modified: m.now}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.copies = append(m.copies, *in.CopySource)
	src := strings.TrimPrefix(*in.CopySource, *in.Bucket+"/")
	obj, ok := m.objects[src]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	m.objects[*in.Key] = obj
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, *in.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		mod := m.objects[k].modified
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), LastModified: &mod})
	}
	return out, nil
}

func TestS3Store_PutOpen(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	s := NewS3Store(mock, "clinic-photos", "prod")

	n, err := s.Put(ctx, "sess/a.jpg", strings.NewReader("hello"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Contains(t, mock.objects, "prod/sess/a.jpg")
	assert.Equal(t, []string{"clinic-photos"}, mock.buckets)

	rc, err := s.Open(ctx, "sess/a.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(data))

	_, err = s.Open(ctx, "sess/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_Move(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	s := NewS3Store(mock, "clinic-photos", "")

	_, err := s.Put(ctx, "temp-photos/p.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)
	require.NoError(t, s.Move(ctx, "temp-photos/p.jpg", "sess/p.jpg"))

	assert.Contains(t, mock.objects, "sess/p.jpg")
	assert.NotContains(t, mock.objects, "temp-photos/p.jpg")
	assert.Equal(t, []string{"clinic-photos/temp-photos/p.jpg"}, mock.copies)

	assert.ErrorIs(t, s.Move(ctx, "temp-photos/none.jpg", "sess/none.jpg"), ErrNotFound)
}

func TestS3Store_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	s := NewS3Store(mock, "b", "")

	mock.now = time.Now().Add(-48 * time.Hour)
	_, _ = s.Put(ctx, "temp-photos/old.jpg", strings.NewReader("x"), "")
	_, _ = s.Put(ctx, "sess/old.jpg", strings.NewReader("x"), "")
	mock.now = time.Now()
	_, _ = s.Put(ctx, "temp-photos/new.jpg", strings.NewReader("x"), "")

	n, err := s.DeleteOlderThan(ctx, TempPrefix, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, mock.objects, "temp-photos/new.jpg")
	assert.Contains(t, mock.objects, "sess/old.jpg")
}
