package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketLookup(t *testing.T) {
	for in, want := range map[string]minio.BucketLookupType{
		"":      minio.BucketLookupAuto,
		"auto":  minio.BucketLookupAuto,
		" DNS ": minio.BucketLookupDNS,
		"path":  minio.BucketLookupPath,
	} {
		got, err := parseBucketLookup(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseBucketLookup("virtual")
	assert.Error(t, err)
}

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, IsNoSuchKey(nil))
	assert.True(t, IsNoSuchKey(fmt.Errorf("get: %w", minio.ErrorResponse{Code: "NoSuchKey"})))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}))
}

func TestIsNoSuchBucket(t *testing.T) {
	assert.False(t, IsNoSuchBucket(nil))
	assert.True(t, IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.False(t, IsNoSuchBucket(minio.ErrorResponse{Code: "NoSuchKey", Message: "key"}))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("put: %w", minio.ErrorResponse{Code: "AccessDenied"})))
	assert.True(t, IsPermanent(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.True(t, IsPermanent(errors.New("The request signature we calculated does not match the signature you provided.")))
	assert.False(t, IsPermanent(errors.New("dial tcp 127.0.0.1:9000: connection refused")))
	assert.False(t, IsPermanent(nil))
}
