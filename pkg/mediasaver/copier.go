package mediasaver

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CopyBufferSize is the size of the intermediate buffer used by CopyStreams.
const CopyBufferSize = 1024

// CopyStreams copies every byte of src into dst through a CopyBufferSize
// buffer. It reports true only if no read, write or destination close error
// occurred. Both streams are closed on every path. On failure dst is left
// partially written.
func CopyStreams(src io.ReadCloser, dst io.WriteCloser) (ok bool) {
	if src == nil || dst == nil {
		slog.Error("copy streams: nil stream", "source_nil", src == nil, "destination_nil", dst == nil)
		closeQuietly(src, dst)
		return false
	}

	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("failed to close source stream", "error", err)
		}
		if err := dst.Close(); err != nil {
			slog.Error("failed to close destination stream", "error", err)
			ok = false
		}
	}()

	// Hide ReaderFrom/WriterTo so the fixed buffer is always used and only the
	// bytes actually read are written.
	buf := make([]byte, CopyBufferSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf); err != nil {
		slog.Error("failed to copy stream", "error", err)
		return false
	}
	return true
}

// CopyFile copies the file at source to target, creating target's directory.
func CopyFile(source, target string) bool {
	in, err := os.Open(source)
	if err != nil {
		slog.Error("failed to open source file", "path", source, "error", err)
		return false
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		slog.Error("failed to create target directory", "path", target, "error", err)
		in.Close()
		return false
	}
	out, err := os.Create(target)
	if err != nil {
		slog.Error("failed to create target file", "path", target, "error", err)
		in.Close()
		return false
	}
	return CopyStreams(in, out)
}

func closeQuietly(closers ...io.Closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		_ = c.Close()
	}
}
