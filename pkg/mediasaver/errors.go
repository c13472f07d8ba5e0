package mediasaver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrEntryNotFound indicates a media entry was not found
	ErrEntryNotFound = errors.New("media entry not found")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrObjectNotFound indicates a blob is missing from its storage backend
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoDestination indicates the media index refused a new entry
	ErrNoDestination = errors.New("no destination available")

	// ErrNoDisplayName indicates the source reference has no last path segment
	ErrNoDisplayName = errors.New("source reference has no display name")

	// ErrPermissionRequired indicates the write permission was requested and the save aborted
	ErrPermissionRequired = errors.New("write permission required")

	// ErrNoPendingPermission indicates a permission result arrived without a request
	ErrNoPendingPermission = errors.New("no pending permission request")

	// ErrCopyFailed indicates the byte copy did not complete
	ErrCopyFailed = errors.New("copy failed")

	// ErrNoInput indicates no shared image has been received
	ErrNoInput = errors.New("no shared input")

	// ErrNoOutput indicates nothing has been saved in this session
	ErrNoOutput = errors.New("no saved output")

	// ErrShareIgnored indicates the share intent is not an image send action
	ErrShareIgnored = errors.New("share intent ignored")

	// ErrSaveInProgress indicates another save or delete is running
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrUnsupportedScheme indicates a reference scheme the resolver cannot open
	ErrUnsupportedScheme = errors.New("unsupported reference scheme")

	// ErrNoViewURL indicates the storage backend cannot produce a view URL
	ErrNoViewURL = errors.New("no view url available")
)

// EntryError represents an error related to media entry operations
type EntryError struct {
	EntryID uuid.UUID
	Op      string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry operation %s failed for entry %s: %v", e.Op, e.EntryID, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
