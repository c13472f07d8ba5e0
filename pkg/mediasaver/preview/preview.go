// Package preview renders bounded-size PNG thumbnails of shared images.
package preview

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"

	"github.com/nfnt/resize"
	"github.com/tendant/image-saver/pkg/mediasaver"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxEdge is the longest edge of a rendered preview, in pixels.
	DefaultMaxEdge = 512

	// MaxSourcePixels bounds the decoded size of a source image. Headers
	// declaring more pixels are never decoded.
	MaxSourcePixels = 64 << 20
)

// Thumbnailer scales images down with Lanczos resampling.
type Thumbnailer struct {
	maxEdge uint
}

// New creates a thumbnailer. maxEdge <= 0 selects DefaultMaxEdge.
func New(maxEdge int) *Thumbnailer {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Thumbnailer{maxEdge: uint(maxEdge)}
}

// Preview decodes data and returns a PNG no larger than the max edge. Data
// that does not decode as an image, or is larger than MaxSourcePixels, is
// returned untouched.
func (t *Thumbnailer) Preview(ctx context.Context, data []byte) (*mediasaver.Preview, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		slog.Warn("Preview passthrough, image too large", "width", cfg.Width, "height", cfg.Height)
		return &mediasaver.Preview{Data: data, MimeType: http.DetectContentType(data)}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Preview passthrough, not a decodable image", "error", err, "size", len(data))
		return &mediasaver.Preview{Data: data, MimeType: http.DetectContentType(data)}, nil
	}

	thumb := resize.Thumbnail(t.maxEdge, t.maxEdge, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, thumb); err != nil {
		return nil, err
	}

	bounds := thumb.Bounds()
	slog.Debug("Rendered preview", "format", format, "width", bounds.Dx(), "height", bounds.Dy())
	return &mediasaver.Preview{Data: buf.Bytes(), MimeType: "image/png"}, nil
}
