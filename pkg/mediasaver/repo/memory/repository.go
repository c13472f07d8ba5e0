package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

// Repository implements mediasaver.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*mediasaver.MediaEntry
}

// New creates a new in-memory media index
func New() mediasaver.Repository {
	return &Repository{
		entries: make(map[uuid.UUID]*mediasaver.MediaEntry),
	}
}

func (r *Repository) InsertEntry(ctx context.Context, entry *mediasaver.MediaEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.ID]; exists {
		return fmt.Errorf("media entry %s already exists", entry.ID)
	}

	// Create a copy to avoid external modifications
	entryCopy := *entry
	r.entries[entry.ID] = &entryCopy
	return nil
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*mediasaver.MediaEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists || entry.DeletedAt != nil {
		return nil, mediasaver.ErrEntryNotFound
	}

	entryCopy := *entry
	return &entryCopy, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, entry *mediasaver.MediaEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.entries[entry.ID]
	if !exists || existing.DeletedAt != nil {
		return mediasaver.ErrEntryNotFound
	}

	entryCopy := *entry
	r.entries[entry.ID] = &entryCopy
	return nil
}

// DeleteEntry soft-deletes an entry; it disappears from Get and from
// listings that do not ask for deleted entries.
func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists || entry.DeletedAt != nil {
		return mediasaver.ErrEntryNotFound
	}

	now := time.Now().UTC()
	entry.Status = string(mediasaver.EntryStatusDeleted)
	entry.DeletedAt = &now
	entry.UpdatedAt = now
	return nil
}

// ListEntries returns entries newest first.
func (r *Repository) ListEntries(ctx context.Context, req mediasaver.ListEntriesRequest) ([]*mediasaver.MediaEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*mediasaver.MediaEntry
	for _, entry := range r.entries {
		if req.Status != "" {
			if entry.Status != req.Status {
				continue
			}
		} else if entry.DeletedAt != nil {
			continue
		}
		entryCopy := *entry
		result = append(result, &entryCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if req.Offset > 0 {
		if req.Offset >= len(result) {
			return []*mediasaver.MediaEntry{}, nil
		}
		result = result[req.Offset:]
	}
	if req.Limit > 0 && req.Limit < len(result) {
		result = result[:req.Limit]
	}
	return result, nil
}
