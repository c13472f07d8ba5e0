package mediasaver

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// GetPreviewURL returns a URL a viewer can open for the object, or an
	// error when the store has no URLs
	GetPreviewURL(ctx context.Context, objectKey string) (string, error)

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// Repository is the shared media index.
type Repository interface {
	InsertEntry(ctx context.Context, entry *MediaEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*MediaEntry, error)
	UpdateEntry(ctx context.Context, entry *MediaEntry) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	ListEntries(ctx context.Context, req ListEntriesRequest) ([]*MediaEntry, error)
}

// EventSink receives media index lifecycle events.
type EventSink interface {
	EntryCreated(ctx context.Context, entry *MediaEntry) error
	EntryUpdated(ctx context.Context, entry *MediaEntry) error
	EntryDeleted(ctx context.Context, entryID uuid.UUID) error
}

// Notifier surfaces short messages to the user.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// PermissionGate tracks runtime permission grants.
type PermissionGate interface {
	// Check reports whether the permission is currently granted
	Check(ctx context.Context, permission string) bool

	// Request asks the user for the permission; the answer arrives through Resolve
	Request(ctx context.Context, permission string) error

	// Resolve records the user's answer to a pending request
	Resolve(ctx context.Context, permission string, granted bool) error
}

// Previewer renders a preview of raw image bytes.
type Previewer interface {
	Preview(ctx context.Context, data []byte) (*Preview, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
