package mediasaver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
)

// StrategyKind names a persistence strategy.
type StrategyKind string

const (
	StrategyModern StrategyKind = "modern"
	StrategyLegacy StrategyKind = "legacy"
)

// Strategy persists a copy of a shared image into the media index.
type Strategy interface {
	Kind() StrategyKind
	Persist(ctx context.Context, ref ImageRef) (*MediaEntry, error)
}

// LocatorConfig holds the collaborators shared by both strategies.
type LocatorConfig struct {
	Repository  Repository
	Resolver    *Resolver
	Loader      *Loader
	Permissions PermissionGate
	Events      EventSink

	// Backend is the blob store new modern entries are written to
	Backend string
	// KeyGenerator names blobs of modern entries
	KeyGenerator objectkey.Generator
	// ExternalDir is the root legacy copies are written under
	ExternalDir string

	Now func() time.Time
}

// SelectStrategy picks the strategy for a platform API level. It is meant to
// be called once, when the service is built.
func SelectStrategy(apiLevel int, cfg LocatorConfig) Strategy {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = objectkey.NewRelativePathGenerator()
	}
	if cfg.Events == nil {
		cfg.Events = NewNoopEventSink()
	}
	if apiLevel >= ModernAPILevel {
		return &ModernStrategy{cfg: cfg}
	}
	return &LegacyStrategy{cfg: cfg}
}

// ModernStrategy registers a pending entry up front and copies into it.
type ModernStrategy struct {
	cfg LocatorConfig
}

func (s *ModernStrategy) Kind() StrategyKind { return StrategyModern }

// Locate registers a pending entry for ref under the bookmark collection and
// returns it. When the index refuses the insert it returns ErrNoDestination.
func (s *ModernStrategy) Locate(ctx context.Context, ref ImageRef) (*MediaEntry, error) {
	displayName := ref.LastPathSegment()
	if displayName == "" {
		return nil, ErrNoDisplayName
	}

	now := s.cfg.Now()
	id := uuid.New()
	entry := &MediaEntry{
		ID:                 id,
		Title:              strconv.FormatInt(now.UnixMilli(), 10),
		DisplayName:        displayName,
		MimeType:           DefaultMimeType,
		RelativePath:       BookmarkRelativePath,
		StorageBackendName: s.cfg.Backend,
		ObjectKey: s.cfg.KeyGenerator.GenerateKey(id, &objectkey.KeyMetadata{
			DisplayName:  displayName,
			RelativePath: BookmarkRelativePath,
		}),
		Status:    string(EntryStatusPending),
		DateAdded: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.cfg.Repository.InsertEntry(ctx, entry); err != nil {
		slog.Error("Failed to insert media entry", "display_name", displayName, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoDestination, err)
	}
	if err := s.cfg.Events.EntryCreated(ctx, entry); err != nil {
		slog.Warn("Event sink failed", "event", "entry_created", "entry_id", entry.ID, "error", err)
	}
	return entry, nil
}

func (s *ModernStrategy) Persist(ctx context.Context, ref ImageRef) (*MediaEntry, error) {
	entry, err := s.Locate(ctx, ref)
	if err != nil {
		return nil, err
	}

	src, err := s.cfg.Resolver.OpenInput(ctx, ref)
	if err != nil {
		slog.Error("Failed to open source", "ref", ref, "error", err)
		s.markFailed(ctx, entry)
		return nil, &EntryError{EntryID: entry.ID, Op: "open_source", Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
	}

	head := bufio.NewReaderSize(src, sniffLen)
	peeked, _ := head.Peek(sniffLen)
	if mimeType := DetectMimeType(peeked, entry.DisplayName); mimeType != entry.MimeType {
		entry.MimeType = mimeType
		if err := s.cfg.Repository.UpdateEntry(ctx, entry); err != nil {
			slog.Warn("Failed to record detected mime type", "entry_id", entry.ID, "error", err)
		}
	}

	dst, err := s.cfg.Resolver.OpenOutput(ctx, entry.URI())
	if err != nil {
		src.Close()
		slog.Error("Failed to open destination", "entry_id", entry.ID, "error", err)
		s.markFailed(ctx, entry)
		return nil, &EntryError{EntryID: entry.ID, Op: "open_destination", Err: fmt.Errorf("%w: %v", ErrCopyFailed, err)}
	}

	source := struct {
		io.Reader
		io.Closer
	}{head, src}
	if !CopyStreams(source, dst) {
		s.markFailed(ctx, entry)
		return nil, &EntryError{EntryID: entry.ID, Op: "copy", Err: ErrCopyFailed}
	}

	if meta, err := s.cfg.Resolver.StatEntry(ctx, entry); err == nil {
		entry.SizeBytes = meta.Size
	} else {
		slog.Warn("Failed to stat saved entry", "entry_id", entry.ID, "error", err)
	}
	entry.Status = string(EntryStatusReady)
	entry.UpdatedAt = s.cfg.Now()
	if err := s.cfg.Repository.UpdateEntry(ctx, entry); err != nil {
		return nil, &EntryError{EntryID: entry.ID, Op: "mark_ready", Err: err}
	}
	if err := s.cfg.Events.EntryUpdated(ctx, entry); err != nil {
		slog.Warn("Event sink failed", "event", "entry_updated", "entry_id", entry.ID, "error", err)
	}
	return entry, nil
}

func (s *ModernStrategy) markFailed(ctx context.Context, entry *MediaEntry) {
	entry.Status = string(EntryStatusFailed)
	entry.UpdatedAt = s.cfg.Now()
	if err := s.cfg.Repository.UpdateEntry(ctx, entry); err != nil {
		slog.Warn("Failed to mark entry failed", "entry_id", entry.ID, "error", err)
	}
}

// LegacyStrategy copies into the external pictures directory and registers
// the copied file afterwards. It needs the write-storage permission.
type LegacyStrategy struct {
	cfg LocatorConfig
}

func (s *LegacyStrategy) Kind() StrategyKind { return StrategyLegacy }

// Locate returns the target path for ref. Without the write permission it
// requests it and returns ErrPermissionRequired; the caller must trigger the
// save again once the permission is granted.
func (s *LegacyStrategy) Locate(ctx context.Context, ref ImageRef) (string, error) {
	displayName := ref.LastPathSegment()
	if displayName == "" {
		return "", ErrNoDisplayName
	}

	if !s.cfg.Permissions.Check(ctx, PermissionWriteExternalStorage) {
		if err := s.cfg.Permissions.Request(ctx, PermissionWriteExternalStorage); err != nil {
			slog.Error("Failed to request permission", "permission", PermissionWriteExternalStorage, "error", err)
		}
		return "", ErrPermissionRequired
	}

	return filepath.Join(s.cfg.ExternalDir, filepath.FromSlash(BookmarkRelativePath), filepath.Base(displayName)), nil
}

func (s *LegacyStrategy) Persist(ctx context.Context, ref ImageRef) (*MediaEntry, error) {
	target, err := s.Locate(ctx, ref)
	if err != nil {
		return nil, err
	}

	downloaded, err := s.cfg.Loader.Download(ctx, ref).Wait(ctx)
	if err != nil {
		slog.Error("Failed to download source", "ref", ref, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	defer os.Remove(downloaded)

	if !CopyFile(downloaded, target) {
		return nil, fmt.Errorf("%w: %s", ErrCopyFailed, target)
	}
	slog.Debug("Copied file", "path", target)

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}

	now := s.cfg.Now()
	displayName := filepath.Base(target)
	entry := &MediaEntry{
		ID:          uuid.New(),
		DisplayName: displayName,
		MimeType:    DetectMimeType(readHead(target), displayName),
		DataPath:    target,
		Status:      string(EntryStatusReady),
		SizeBytes:   info.Size(),
		DateAdded:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.cfg.Repository.InsertEntry(ctx, entry); err != nil {
		slog.Error("Failed to insert media entry", "path", target, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoDestination, err)
	}
	if err := s.cfg.Events.EntryCreated(ctx, entry); err != nil {
		slog.Warn("Event sink failed", "event", "entry_created", "entry_id", entry.ID, "error", err)
	}
	return entry, nil
}

func readHead(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}
