package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/image-saver/pkg/mediasaver"
)

// EntryLister pages through the media index. mediasaver.Service implements it.
type EntryLister interface {
	ListEntries(ctx context.Context, req mediasaver.ListEntriesRequest) ([]*mediasaver.MediaEntry, error)
}

// Scanner queries media entries and processes them with the provided processor.
type Scanner struct {
	lister EntryLister
}

// New creates a new Scanner instance.
func New(lister EntryLister) *Scanner {
	return &Scanner{lister: lister}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// Status restricts the scan to entries in one status (empty means all live entries)
	Status string

	// Processor defines the processing logic (required unless DryRun is true)
	Processor EntryProcessor

	// BatchSize controls how many entries to query at once (default: 100)
	BatchSize int

	// DryRun if true, doesn't process entries, just reports what would be processed
	DryRun bool

	// OnProgress is called after each batch is processed (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64

	// FailedIDs contains the IDs of entries that failed processing
	FailedIDs []string
}

// Scan pages through entries and processes each one. A failing entry is
// recorded and the scan continues with the next one.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		entries, err := s.lister.ListEntries(ctx, mediasaver.ListEntriesRequest{
			Status: opts.Status,
			Limit:  opts.BatchSize,
			Offset: offset,
		})
		if err != nil {
			return result, fmt.Errorf("failed to list entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		result.TotalFound += int64(len(entries))

		for _, entry := range entries {
			if opts.DryRun {
				slog.Info("Dry run, would process entry",
					"entry_id", entry.ID, "display_name", entry.DisplayName, "status", entry.Status)
				result.TotalProcessed++
				continue
			}

			if err := opts.Processor.Process(ctx, entry); err != nil {
				result.TotalFailed++
				result.FailedIDs = append(result.FailedIDs, entry.ID.String())
				slog.Warn("Failed to process entry", "entry_id", entry.ID, "error", err)
				continue
			}

			result.TotalProcessed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed, result.TotalFound)
		}

		if len(entries) < opts.BatchSize {
			break
		}
		offset += opts.BatchSize
	}

	return result, nil
}

// ForEach processes each entry with a callback function.
//
// Example:
//
//	scanner.ForEach(ctx, "ready", func(ctx context.Context, entry *mediasaver.MediaEntry) error {
//	    fmt.Printf("Processing %s\n", entry.DisplayName)
//	    return nil
//	})
func (s *Scanner) ForEach(ctx context.Context, status string, fn func(context.Context, *mediasaver.MediaEntry) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{
		Status:    status,
		Processor: funcProcessor(fn),
	})
}

// funcProcessor adapts a function to the EntryProcessor interface.
type funcProcessor func(context.Context, *mediasaver.MediaEntry) error

func (f funcProcessor) Process(ctx context.Context, entry *mediasaver.MediaEntry) error {
	return f(ctx, entry)
}
