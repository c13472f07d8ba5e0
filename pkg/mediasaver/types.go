package mediasaver

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus is the lifecycle state of a MediaEntry.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusReady   EntryStatus = "ready"
	EntryStatusFailed  EntryStatus = "failed"
	EntryStatusDeleted EntryStatus = "deleted"
)

const (
	// BookmarkRelativePath is the sub-collection saved images are filed under.
	BookmarkRelativePath = "Pictures/bookmark"

	// DefaultMimeType is recorded when the image type cannot be detected.
	DefaultMimeType = "image/*"

	// ActionSend is the share action accepted by ReceiveShare.
	ActionSend = "android.intent.action.SEND"

	// PermissionWriteExternalStorage guards the legacy save path.
	PermissionWriteExternalStorage = "android.permission.WRITE_EXTERNAL_STORAGE"

	// ModernAPILevel is the first platform API level using the modern strategy.
	ModernAPILevel = 29
)

// MediaEntry is a record in the shared media index.
//
// Entries saved by the modern strategy carry RelativePath and live in a blob
// store (StorageBackendName/ObjectKey). Entries saved by the legacy strategy
// carry DataPath, the absolute location of the copied file.
type MediaEntry struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title,omitempty"`
	DisplayName        string     `json:"display_name"`
	MimeType           string     `json:"mime_type"`
	RelativePath       string     `json:"relative_path,omitempty"`
	DataPath           string     `json:"data_path,omitempty"`
	StorageBackendName string     `json:"storage_backend_name,omitempty"`
	ObjectKey          string     `json:"object_key,omitempty"`
	Status             string     `json:"status"`
	SizeBytes          int64      `json:"size_bytes"`
	DateAdded          time.Time  `json:"date_added"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// URI returns the index reference of the entry.
func (e *MediaEntry) URI() ImageRef {
	return EntryRef(e.ID)
}

// IsLegacy reports whether the entry points at a file rather than a blob.
func (e *MediaEntry) IsLegacy() bool {
	return e.DataPath != "" && e.StorageBackendName == ""
}

// ShareIntent is an inbound share action from another application.
type ShareIntent struct {
	Action string   `json:"action"`
	Type   string   `json:"type"`
	Stream ImageRef `json:"stream"`
}

// SessionState is the current input and output of a session.
type SessionState struct {
	Input  ImageRef    `json:"input,omitempty"`
	Output *MediaEntry `json:"output,omitempty"`
}

// Preview is a rendered preview of an image.
type Preview struct {
	Data     []byte
	MimeType string
}

// NoticeLevel is the severity of a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a short user-visible message, the equivalent of a toast.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// User-visible notice texts.
const (
	NoticeDownloadSuccess = "Download Success"
	NoticeDownloadFail    = "Download Fail"
	NoticeNoPermission    = "Don't have permission"
	NoticeImageDeleted    = "Image deleted..."
)

// ListEntriesRequest filters entries in the media index.
type ListEntriesRequest struct {
	Status string
	Limit  int
	Offset int
}
