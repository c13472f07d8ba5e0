package scan

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

// EntryProcessor processes individual media entries.
//
// Example implementations:
//   - Integrity check (the bytes behind an entry are still readable)
//   - Exporter (copies saved images elsewhere)
//   - Reporter (summarizes the index by type or size)
type EntryProcessor interface {
	// Process is called for each entry found during a scan.
	// Return error to mark this entry as failed (the scan continues with the next entry).
	Process(ctx context.Context, entry *mediasaver.MediaEntry) error
}

// EntryOpener opens the bytes behind an entry. mediasaver.Service implements it.
type EntryOpener interface {
	OpenEntry(ctx context.Context, id uuid.UUID) (*mediasaver.MediaEntry, io.ReadCloser, error)
}

// IntegrityProcessor fails entries whose bytes can no longer be read in full.
type IntegrityProcessor struct {
	Opener EntryOpener
}

func (p *IntegrityProcessor) Process(ctx context.Context, entry *mediasaver.MediaEntry) error {
	_, rc, err := p.Opener.OpenEntry(ctx, entry.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return err
	}
	if entry.SizeBytes > 0 && n != entry.SizeBytes {
		return fmt.Errorf("size mismatch: index has %d bytes, storage has %d", entry.SizeBytes, n)
	}
	return nil
}
