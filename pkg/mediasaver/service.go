package mediasaver

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is one image-saving session: a shared input, and the entry saved
// from it.
type Service interface {
	// ReceiveShare accepts an image send action and starts loading its preview
	ReceiveShare(ctx context.Context, intent ShareIntent) error

	// Save persists a copy of the current input with the selected strategy
	Save(ctx context.Context) (*MediaEntry, error)

	// PermissionResult delivers the user's answer to a permission request
	PermissionResult(ctx context.Context, permission string, granted bool) error

	// PreviewInput renders the current input
	PreviewInput(ctx context.Context) (*Preview, error)

	// OpenOutput returns a URL a viewer can open for the current output
	OpenOutput(ctx context.Context) (string, error)

	// LoadOutput reloads the current output from the media index and renders it
	LoadOutput(ctx context.Context) (*Preview, error)

	// DeleteOutput removes the current output from the media index
	DeleteOutput(ctx context.Context) error

	State() SessionState
	Strategy() StrategyKind

	GetEntry(ctx context.Context, id uuid.UUID) (*MediaEntry, error)

	// OpenEntry streams the bytes behind an entry of the media index
	OpenEntry(ctx context.Context, id uuid.UUID) (*MediaEntry, io.ReadCloser, error)

	ListEntries(ctx context.Context, req ListEntriesRequest) ([]*MediaEntry, error)
}
