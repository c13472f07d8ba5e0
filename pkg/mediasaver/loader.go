package mediasaver

import (
	"context"
	"fmt"
	"io"
	"os"
)

// MaxLoadBytes bounds how much of a source Load reads into memory.
const MaxLoadBytes = 32 << 20

// InputOpener opens image references for reading.
type InputOpener interface {
	OpenInput(ctx context.Context, ref ImageRef) (io.ReadCloser, error)
}

// Loader fetches images off the caller's goroutine and hands results back as
// Pending values.
type Loader struct {
	opener  InputOpener
	tempDir string
}

// NewLoader creates a loader. Downloads go to tempDir, or the OS temp
// directory when empty.
func NewLoader(opener InputOpener, tempDir string) *Loader {
	return &Loader{opener: opener, tempDir: tempDir}
}

// Load reads the whole image into memory.
func (l *Loader) Load(ctx context.Context, ref ImageRef) *Pending[[]byte] {
	return Go(ctx, func(ctx context.Context) ([]byte, error) {
		rc, err := l.opener.OpenInput(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, MaxLoadBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ref, err)
		}
		if len(data) > MaxLoadBytes {
			return nil, fmt.Errorf("image %s exceeds %d bytes", ref, MaxLoadBytes)
		}
		return data, nil
	})
}

// Download copies the image into a temporary file and returns its path. The
// caller owns the file.
func (l *Loader) Download(ctx context.Context, ref ImageRef) *Pending[string] {
	return Go(ctx, func(ctx context.Context) (string, error) {
		src, err := l.opener.OpenInput(ctx, ref)
		if err != nil {
			return "", err
		}
		tmp, err := os.CreateTemp(l.tempDir, "download-*")
		if err != nil {
			src.Close()
			return "", fmt.Errorf("failed to create temp file: %w", err)
		}
		if !CopyStreams(src, tmp) {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("%w: download of %s", ErrCopyFailed, ref)
		}
		return tmp.Name(), nil
	})
}
