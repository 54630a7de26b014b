// Package recents keeps the bounded, most-recent-first play history.
package recents

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"karolbroda.com/encore/internal/track"
)

const DefaultLimit = 10

// Store persists the history as a whole list.
type Store interface {
	Load(ctx context.Context) ([]track.Song, error)
	Save(ctx context.Context, songs []track.Song) error
	Close() error
}

// History is de-duplicated by song id and never longer than its limit.
type History struct {
	store  Store
	limit  int
	logger *zap.Logger

	// saveMu orders store writes the same way as the in-memory updates.
	saveMu sync.Mutex
	mu     sync.Mutex
	songs  []track.Song
}

// Open loads the persisted history from store.
func Open(ctx context.Context, store Store, limit int, logger *zap.Logger) (*History, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	songs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recents: %w", err)
	}
	if len(songs) > limit {
		songs = songs[:limit]
	}

	return &History{
		store:  store,
		limit:  limit,
		logger: logger,
		songs:  songs,
	}, nil
}

// Record moves song to the front and persists the list. Persistence
// failures are logged and returned, the in-memory list is updated anyway.
func (h *History) Record(ctx context.Context, song track.Song) error {
	if !song.IsValid() {
		return nil
	}

	h.saveMu.Lock()
	defer h.saveMu.Unlock()

	h.mu.Lock()
	next := make([]track.Song, 0, h.limit)
	next = append(next, song)
	for _, s := range h.songs {
		if len(next) == h.limit {
			break
		}
		if s.ID != song.ID {
			next = append(next, s)
		}
	}
	h.songs = next
	snapshot := h.snapshotLocked()
	h.mu.Unlock()

	if err := h.store.Save(ctx, snapshot); err != nil {
		h.logger.Warn("Failed to persist recents", zap.Int64("song_id", song.ID), zap.Error(err))
		return fmt.Errorf("failed to save recents: %w", err)
	}
	return nil
}

// Songs returns the history, most recent first.
func (h *History) Songs() []track.Song {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// FirstWithArtist returns the most recent song that carries an artist id.
func (h *History) FirstWithArtist() (track.Song, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.songs {
		if s.HasArtistID() {
			return s, true
		}
	}
	return track.Song{}, false
}

func (h *History) Clear(ctx context.Context) error {
	h.saveMu.Lock()
	defer h.saveMu.Unlock()

	h.mu.Lock()
	h.songs = nil
	h.mu.Unlock()
	return h.store.Save(ctx, nil)
}

func (h *History) Close() error {
	return h.store.Close()
}

func (h *History) snapshotLocked() []track.Song {
	out := make([]track.Song, len(h.songs))
	copy(out, h.songs)
	return out
}

// MemoryStore keeps the history for the life of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	songs []track.Song
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) ([]track.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]track.Song, len(m.songs))
	copy(out, m.songs)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, songs []track.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.songs = append(m.songs[:0:0], songs...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
