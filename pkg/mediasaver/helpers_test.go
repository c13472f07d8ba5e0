package mediasaver_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/repo/memory"
)

// testPNG returns a small encoded PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type imageServer struct {
	*httptest.Server
	hits atomic.Int32
}

// newImageServer serves body for every path below /images/ and 404 elsewhere.
func newImageServer(t *testing.T, body []byte) *imageServer {
	t.Helper()
	s := &imageServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) ref(name string) mediasaver.ImageRef {
	return mediasaver.ImageRef(s.URL + "/images/" + name)
}

// failingRepository refuses every insert.
type failingRepository struct {
	mediasaver.Repository
	inserts atomic.Int32
}

func newFailingRepository() *failingRepository {
	return &failingRepository{Repository: memory.New()}
}

func (r *failingRepository) InsertEntry(ctx context.Context, entry *mediasaver.MediaEntry) error {
	r.inserts.Add(1)
	return errors.New("index is read-only")
}

// recordingSink collects lifecycle events.
type recordingSink struct {
	created []uuid.UUID
	updated []string
	deleted []uuid.UUID
}

func (s *recordingSink) EntryCreated(ctx context.Context, entry *mediasaver.MediaEntry) error {
	s.created = append(s.created, entry.ID)
	return nil
}

func (s *recordingSink) EntryUpdated(ctx context.Context, entry *mediasaver.MediaEntry) error {
	s.updated = append(s.updated, entry.Status)
	return nil
}

func (s *recordingSink) EntryDeleted(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func messages(notices []mediasaver.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Message)
	}
	return out
}
