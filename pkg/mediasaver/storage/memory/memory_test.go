package memory_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
	memorystorage "github.com/tendant/image-saver/pkg/mediasaver/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "Pictures/bookmark/cat.png"
	testData := "\x89PNG not really a png"

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "application/octet-stream", meta.ContentType)
		assert.False(t, meta.UpdatedAt.IsZero())
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloaded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(downloaded))
	})

	t.Run("UploadWithParams", func(t *testing.T) {
		key := "Pictures/bookmark/dog.jpg"
		err := backend.UploadWithParams(ctx, strings.NewReader(testData), mediasaver.UploadParams{
			ObjectKey: key,
			MimeType:  "image/jpeg",
		})
		require.NoError(t, err)

		meta, err := backend.GetObjectMeta(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", meta.ContentType)

		// overwriting without a type keeps the recorded one
		require.NoError(t, backend.Upload(ctx, key, strings.NewReader("again")))
		meta, err = backend.GetObjectMeta(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", meta.ContentType)
		assert.Equal(t, int64(5), meta.Size)
	})

	t.Run("Delete", func(t *testing.T) {
		key := "Pictures/bookmark/gone.gif"
		require.NoError(t, backend.Upload(ctx, key, strings.NewReader(testData)))
		require.NoError(t, backend.Delete(ctx, key))

		_, err := backend.GetObjectMeta(ctx, key)
		assert.ErrorIs(t, err, mediasaver.ErrObjectNotFound)
	})

	t.Run("URLsAreNotSupported", func(t *testing.T) {
		url, err := backend.GetPreviewURL(ctx, testKey)
		assert.Error(t, err)
		assert.Empty(t, url)
	})

	t.Run("MissingObjects", func(t *testing.T) {
		missing := "nonexistent/key"

		meta, err := backend.GetObjectMeta(ctx, missing)
		assert.ErrorIs(t, err, mediasaver.ErrObjectNotFound)
		assert.Nil(t, meta)

		reader, err := backend.Download(ctx, missing)
		assert.ErrorIs(t, err, mediasaver.ErrObjectNotFound)
		assert.Nil(t, reader)

		assert.ErrorIs(t, backend.Delete(ctx, missing), mediasaver.ErrObjectNotFound)
	})
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 50

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer func() { done <- true }()

			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("concurrent/%d/%d", goroutineID, j)
				data := fmt.Sprintf("goroutine %d, operation %d", goroutineID, j)

				if err := backend.UploadWithParams(ctx, strings.NewReader(data), mediasaver.UploadParams{ObjectKey: key, MimeType: "image/png"}); err != nil {
					t.Error(err)
					return
				}

				rc, err := backend.Download(ctx, key)
				if err != nil {
					t.Error(err)
					return
				}
				got, _ := io.ReadAll(rc)
				rc.Close()
				assert.Equal(t, data, string(got))

				if err := backend.Delete(ctx, key); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}
}
