package mediasaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// Resolver opens byte streams for image references: local files, HTTP
// sources, blobs of a registered backend and entries of the media index.
type Resolver struct {
	repository Repository
	blobStores map[string]BlobStore
	httpClient *http.Client
}

// NewResolver creates a resolver over the given index and backends.
func NewResolver(repository Repository, blobStores map[string]BlobStore, httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		repository: repository,
		blobStores: blobStores,
		httpClient: httpClient,
	}
}

// Backend returns a registered blob store by name.
func (r *Resolver) Backend(name string) (BlobStore, error) {
	backend, exists := r.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

// OpenInput opens ref for reading.
func (r *Resolver) OpenInput(ctx context.Context, ref ImageRef) (io.ReadCloser, error) {
	switch ref.Scheme() {
	case schemeFile:
		path, ok := ref.FilePath()
		if !ok {
			return nil, fmt.Errorf("invalid file reference %q", ref)
		}
		return os.Open(path)

	case schemeHTTP, schemeHTTPS:
		return r.fetch(ctx, ref)

	case schemeBlob:
		name, key, ok := ref.BlobLocation()
		if !ok {
			return nil, fmt.Errorf("invalid blob reference %q", ref)
		}
		backend, err := r.Backend(name)
		if err != nil {
			return nil, err
		}
		rc, err := backend.Download(ctx, key)
		if err != nil {
			return nil, &StorageError{Backend: name, Key: key, Op: "download", Err: err}
		}
		return rc, nil

	case schemeMedia:
		entry, err := r.entry(ctx, ref)
		if err != nil {
			return nil, err
		}
		return r.OpenEntry(ctx, entry)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Scheme())
	}
}

// OpenEntry opens the bytes behind a media entry for reading.
func (r *Resolver) OpenEntry(ctx context.Context, entry *MediaEntry) (io.ReadCloser, error) {
	if entry.IsLegacy() {
		return os.Open(entry.DataPath)
	}
	backend, err := r.Backend(entry.StorageBackendName)
	if err != nil {
		return nil, &EntryError{EntryID: entry.ID, Op: "open", Err: err}
	}
	rc, err := backend.Download(ctx, entry.ObjectKey)
	if err != nil {
		return nil, &StorageError{Backend: entry.StorageBackendName, Key: entry.ObjectKey, Op: "download", Err: err}
	}
	return rc, nil
}

// OpenOutput opens ref for writing. Writes to a blob-backed entry stream
// straight into its backend; Close reports the upload result.
func (r *Resolver) OpenOutput(ctx context.Context, ref ImageRef) (io.WriteCloser, error) {
	switch ref.Scheme() {
	case schemeFile:
		path, ok := ref.FilePath()
		if !ok {
			return nil, fmt.Errorf("invalid file reference %q", ref)
		}
		return createFile(path)

	case schemeBlob:
		name, key, ok := ref.BlobLocation()
		if !ok {
			return nil, fmt.Errorf("invalid blob reference %q", ref)
		}
		backend, err := r.Backend(name)
		if err != nil {
			return nil, err
		}
		return newUploadWriter(ctx, backend, name, UploadParams{ObjectKey: key}), nil

	case schemeMedia:
		entry, err := r.entry(ctx, ref)
		if err != nil {
			return nil, err
		}
		if entry.IsLegacy() {
			return createFile(entry.DataPath)
		}
		backend, err := r.Backend(entry.StorageBackendName)
		if err != nil {
			return nil, &EntryError{EntryID: entry.ID, Op: "open_output", Err: err}
		}
		params := UploadParams{ObjectKey: entry.ObjectKey, MimeType: entry.MimeType}
		return newUploadWriter(ctx, backend, entry.StorageBackendName, params), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Scheme())
	}
}

// StatEntry returns storage metadata for the bytes behind an entry.
func (r *Resolver) StatEntry(ctx context.Context, entry *MediaEntry) (*ObjectMeta, error) {
	if entry.IsLegacy() {
		info, err := os.Stat(entry.DataPath)
		if err != nil {
			return nil, err
		}
		return &ObjectMeta{Key: entry.DataPath, Size: info.Size(), UpdatedAt: info.ModTime()}, nil
	}
	backend, err := r.Backend(entry.StorageBackendName)
	if err != nil {
		return nil, err
	}
	meta, err := backend.GetObjectMeta(ctx, entry.ObjectKey)
	if err != nil {
		return nil, &StorageError{Backend: entry.StorageBackendName, Key: entry.ObjectKey, Op: "get_object_meta", Err: err}
	}
	return meta, nil
}

// RemoveEntryBytes deletes the bytes behind an entry. Missing bytes are not
// an error.
func (r *Resolver) RemoveEntryBytes(ctx context.Context, entry *MediaEntry) error {
	if entry.IsLegacy() {
		if err := os.Remove(entry.DataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if entry.StorageBackendName == "" {
		return nil
	}
	backend, err := r.Backend(entry.StorageBackendName)
	if err != nil {
		return err
	}
	if err := backend.Delete(ctx, entry.ObjectKey); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return &StorageError{Backend: entry.StorageBackendName, Key: entry.ObjectKey, Op: "delete", Err: err}
	}
	return nil
}

// ViewURL returns a URL a viewer can open for the entry.
func (r *Resolver) ViewURL(ctx context.Context, entry *MediaEntry) (string, error) {
	if entry.IsLegacy() {
		return FileRef(entry.DataPath).String(), nil
	}
	backend, err := r.Backend(entry.StorageBackendName)
	if err != nil {
		return "", err
	}
	url, err := backend.GetPreviewURL(ctx, entry.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoViewURL, err)
	}
	return url, nil
}

func (r *Resolver) entry(ctx context.Context, ref ImageRef) (*MediaEntry, error) {
	id, ok := ref.EntryID()
	if !ok {
		return nil, fmt.Errorf("invalid media reference %q", ref)
	}
	return r.repository.GetEntry(ctx, id)
}

func (r *Resolver) fetch(ctx context.Context, ref ImageRef) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", ref, resp.Status)
	}
	return resp.Body, nil
}

func createFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.Create(path)
}

// uploadWriter streams writes into BlobStore.UploadWithParams through a pipe.
type uploadWriter struct {
	pw      *io.PipeWriter
	done    chan error
	backend string
	key     string

	closeOnce sync.Once
	closeErr  error
}

func newUploadWriter(ctx context.Context, store BlobStore, backend string, params UploadParams) *uploadWriter {
	pr, pw := io.Pipe()
	w := &uploadWriter{
		pw:      pw,
		done:    make(chan error, 1),
		backend: backend,
		key:     params.ObjectKey,
	}
	go func() {
		err := store.UploadWithParams(ctx, pr, params)
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		w.done <- err
	}()
	return w
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *uploadWriter) Close() error {
	w.closeOnce.Do(func() {
		w.pw.Close()
		if err := <-w.done; err != nil {
			w.closeErr = &StorageError{Backend: w.backend, Key: w.key, Op: "upload", Err: err}
		}
	})
	return w.closeErr
}
