package mediasaver_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

func TestImageRef_LastPathSegment(t *testing.T) {
	tests := []struct {
		ref  mediasaver.ImageRef
		want string
	}{
		{"content://com.example.provider/images/cat.png", "cat.png"},
		{"https://example.com/a/b/photo%20one.jpg?size=large", "photo one.jpg"},
		{"file:///sdcard/Download/dog.gif", "dog.gif"},
		{"https://example.com/gallery/", "gallery"},
		{"https://example.com", ""},
		{"https://example.com/", ""},
		{"", ""},
		{"https://example.com/a/..", ""},
		{"https://example.com/a/./", ""},
		{"file:///sdcard/Download/..", ""},
		{"https://example.com/a/..cat.png", "..cat.png"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ref), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.LastPathSegment())
		})
	}
}

func TestImageRef_Scheme(t *testing.T) {
	assert.Equal(t, "https", mediasaver.ImageRef("HTTPS://example.com/x.png").Scheme())
	assert.Equal(t, "file", mediasaver.FileRef("/tmp/x.png").Scheme())
	assert.Equal(t, "", mediasaver.ImageRef("relative/x.png").Scheme())
}

func TestEntryRef(t *testing.T) {
	id := uuid.New()
	ref := mediasaver.EntryRef(id)

	assert.Equal(t, "media://images/"+id.String(), ref.String())
	got, ok := ref.EntryID()
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = mediasaver.ImageRef("media://videos/" + id.String()).EntryID()
	assert.False(t, ok)
	_, ok = mediasaver.ImageRef("media://images/not-a-uuid").EntryID()
	assert.False(t, ok)
}

func TestFileRef(t *testing.T) {
	ref := mediasaver.FileRef("/tmp/my pictures/cat.png")

	path, ok := ref.FilePath()
	assert.True(t, ok)
	assert.Equal(t, "/tmp/my pictures/cat.png", path)
	assert.Equal(t, "cat.png", ref.LastPathSegment())

	_, ok = mediasaver.ImageRef("https://example.com/cat.png").FilePath()
	assert.False(t, ok)
}

func TestBlobRef(t *testing.T) {
	ref := mediasaver.BlobRef("memory", "uploads/cat.png")
	assert.Equal(t, "blob://memory/uploads/cat.png", ref.String())

	backend, key, ok := ref.BlobLocation()
	assert.True(t, ok)
	assert.Equal(t, "memory", backend)
	assert.Equal(t, "uploads/cat.png", key)
	assert.Equal(t, "cat.png", ref.LastPathSegment())

	_, _, ok = mediasaver.ImageRef("blob://memory/").BlobLocation()
	assert.False(t, ok)
}

func TestDetectMimeType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	gif := []byte("GIF89a\x01\x00\x01\x00")

	assert.Equal(t, "image/png", mediasaver.DetectMimeType(png, "whatever.bin"))
	assert.Equal(t, "image/gif", mediasaver.DetectMimeType(gif, ""))
	assert.Equal(t, "image/jpeg", mediasaver.DetectMimeType([]byte("plain text"), "photo.JPG"))
	assert.Equal(t, mediasaver.DefaultMimeType, mediasaver.DetectMimeType([]byte("plain text"), "notes.txt"))
	assert.Equal(t, mediasaver.DefaultMimeType, mediasaver.DetectMimeType(nil, ""))
}
