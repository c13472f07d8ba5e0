package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("bucket is required", func(t *testing.T) {
		cfg := Config{Region: "eu-west-1"}
		assert.ErrorContains(t, cfg.Validate(), "bucket name is required")
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := Config{Bucket: "pictures", KeyPrefix: "/saver/"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultRegion, cfg.Region)
		assert.Equal(t, DefaultURLExpiry, cfg.URLExpiry)
		assert.Equal(t, "saver", cfg.KeyPrefix)
	})

	t.Run("unknown encryption", func(t *testing.T) {
		cfg := Config{Bucket: "pictures", Encryption: "rot13"}
		assert.ErrorContains(t, cfg.Validate(), "unsupported encryption")
	})
}

func TestNew_MinIOEndpoint(t *testing.T) {
	store, err := New(Config{
		Bucket:          "pictures",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		URLExpiry:       2 * time.Hour,
	})
	require.NoError(t, err)

	b := store.(*Backend)
	assert.Equal(t, 2*time.Hour, b.config.URLExpiry)
	assert.NotNil(t, b.uploader)
}

func TestBackend_Key(t *testing.T) {
	plain := &Backend{config: Config{}}
	assert.Equal(t, "Pictures/bookmark/cat.png", aws.ToString(plain.key("Pictures/bookmark/cat.png")))

	prefixed := &Backend{config: Config{KeyPrefix: "tenant-a"}}
	assert.Equal(t, "tenant-a/Pictures/bookmark/cat.png", aws.ToString(prefixed.key("Pictures/bookmark/cat.png")))
}

func TestBackend_Encrypt(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantSSE   types.ServerSideEncryption
		wantKMSID string
	}{
		{name: "none", config: Config{}},
		{name: "aes256", config: Config{Encryption: EncryptionAES256}, wantSSE: types.ServerSideEncryptionAes256},
		{name: "kms default key", config: Config{Encryption: EncryptionKMS}, wantSSE: types.ServerSideEncryptionAwsKms},
		{name: "kms with key", config: Config{Encryption: EncryptionKMS, KMSKeyID: "key-1"}, wantSSE: types.ServerSideEncryptionAwsKms, wantKMSID: "key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &s3.PutObjectInput{}
			(&Backend{config: tt.config}).encrypt(input)

			assert.Equal(t, tt.wantSSE, input.ServerSideEncryption)
			assert.Equal(t, tt.wantKMSID, aws.ToString(input.SSEKMSKeyId))
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "modeled not found", err: &types.NotFound{}, notFound: true},
		{name: "modeled no such key", err: fmt.Errorf("get: %w", &types.NoSuchKey{}), notFound: true},
		{name: "bare no such key", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, notFound: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, isNotFound(tt.err))
			assert.Equal(t, tt.notFound, errors.Is(wrap("get", "cat.png", tt.err), mediasaver.ErrObjectNotFound))
		})
	}

	assert.True(t, hasCode(&smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}, "BucketAlreadyExists", "BucketAlreadyOwnedByYou"))
	assert.False(t, hasCode(errors.New("BucketAlreadyExists"), "BucketAlreadyExists"))
}

func TestBackend_PreviewURL(t *testing.T) {
	store, err := New(Config{
		Bucket:          "pictures",
		KeyPrefix:       "saver",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	url, err := store.GetPreviewURL(context.Background(), "Pictures/bookmark/cat.png")
	require.NoError(t, err)
	assert.Contains(t, url, "pictures/saver/Pictures/bookmark/cat.png")
	assert.Contains(t, url, "X-Amz-Signature")
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "inline")
}

// TestBackend_Integration runs against MinIO or S3 when AWS_S3_* is set.
func TestBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	bucket := os.Getenv("AWS_S3_BUCKET")
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	store, err := New(Config{
		Bucket:          bucket,
		KeyPrefix:       fmt.Sprintf("it-%d", time.Now().UnixNano()),
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Endpoint:        endpoint,
		UsePathStyle:    true,
		CreateBucket:    true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "Pictures/bookmark/cat.png"
	data := []byte("\x89PNG\r\n\x1a\n integration")

	require.NoError(t, store.UploadWithParams(ctx, bytes.NewReader(data), mediasaver.UploadParams{
		ObjectKey: key,
		MimeType:  "image/png",
	}))

	rc, err := store.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	meta, err := store.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, key, meta.Key)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Download(ctx, key)
	assert.ErrorIs(t, err, mediasaver.ErrObjectNotFound)
	assert.NoError(t, store.Delete(ctx, key))
}
