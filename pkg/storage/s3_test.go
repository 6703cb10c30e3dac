package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	s3iface.S3API
	objects map[string]bool
	err     error
}

func (m *mockS3) HeadObjectWithContext(
	_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option,
) (*s3.HeadObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}

	if m.objects[*in.Bucket+"/"+*in.Key] {
		return &s3.HeadObjectOutput{}, nil
	}

	return nil, awserr.NewRequestFailure(
		awserr.New("NotFound", "not found", nil), http.StatusNotFound, "req-1")
}

func TestS3Storage_Exists(t *testing.T) {
	client := &mockS3{objects: map[string]bool{"chat/message_files/c1/u1/a.png": true}}
	s := NewS3StorageWithClient(client, "chat")

	ok, err := s.Exists(context.Background(), "message_files/c1/u1/a.png")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(context.Background(), "message_files/c1/u1/b.png")
	require.NoError(t, err)
	require.False(t, ok)

	client.err = errors.New("connection refused")
	_, err = s.Exists(context.Background(), "message_files/c1/u1/a.png")
	require.Error(t, err)
}
