package mediasaver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) EntryCreated(ctx context.Context, entry *MediaEntry) error {
	return nil
}

func (n *NoopEventSink) EntryUpdated(ctx context.Context, entry *MediaEntry) error {
	return nil
}

func (n *NoopEventSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses
// slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) EntryCreated(ctx context.Context, entry *MediaEntry) error {
	l.logger.InfoContext(ctx, "Media entry created",
		"entry_id", entry.ID, "display_name", entry.DisplayName, "status", entry.Status)
	return nil
}

func (l *LoggingEventSink) EntryUpdated(ctx context.Context, entry *MediaEntry) error {
	l.logger.InfoContext(ctx, "Media entry updated",
		"entry_id", entry.ID, "status", entry.Status, "mime_type", entry.MimeType, "size_bytes", entry.SizeBytes)
	return nil
}

func (l *LoggingEventSink) EntryDeleted(ctx context.Context, entryID uuid.UUID) error {
	l.logger.InfoContext(ctx, "Media entry deleted", "entry_id", entryID)
	return nil
}

// passthroughPreviewer returns the image bytes untouched.
type passthroughPreviewer struct{}

func (passthroughPreviewer) Preview(ctx context.Context, data []byte) (*Preview, error) {
	return &Preview{Data: data, MimeType: http.DetectContentType(data)}, nil
}
