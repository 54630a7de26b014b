// Package likes keeps the local liked set in step with the catalog.
package likes

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"karolbroda.com/encore/internal/track"
)

// Persister is the catalog side of likes and caching.
type Persister interface {
	ToggleLike(ctx context.Context, song track.Song) error
	TriggerCache(ctx context.Context, song track.Song) error
	LikedSongs(ctx context.Context) ([]track.Song, error)
}

// Scheduler runs fire-and-forget work. tasks.Runner satisfies it.
type Scheduler interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Coordinator owns the liked set. Toggles change local state immediately and
// persist in the background; a failed write is logged and never rolled back.
type Coordinator struct {
	persister Persister
	scheduler Scheduler
	logger    *zap.Logger

	mu      sync.RWMutex
	members map[int64]track.Song
	order   []int64
}

func NewCoordinator(persister Persister, scheduler Scheduler, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		persister: persister,
		scheduler: scheduler,
		logger:    logger,
		members:   make(map[int64]track.Song),
	}
}

// Refresh replaces the local set with the catalog's list.
func (c *Coordinator) Refresh(ctx context.Context) error {
	songs, err := c.persister.LikedSongs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch liked songs: %w", err)
	}

	members := make(map[int64]track.Song, len(songs))
	order := make([]int64, 0, len(songs))
	for _, s := range songs {
		if _, dup := members[s.ID]; dup || s.ID == 0 {
			continue
		}
		members[s.ID] = s
		order = append(order, s.ID)
	}

	c.mu.Lock()
	c.members = members
	c.order = order
	c.mu.Unlock()

	c.logger.Debug("Liked songs refreshed", zap.Int("count", len(order)))
	return nil
}

func (c *Coordinator) IsLiked(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[id]
	return ok
}

func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Songs returns the liked songs, most recently liked first.
func (c *Coordinator) Songs() []track.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]track.Song, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.members[id])
	}
	return out
}

// Toggle flips membership of song and returns the new state.
func (c *Coordinator) Toggle(song track.Song) bool {
	c.mu.Lock()
	_, liked := c.members[song.ID]
	if liked {
		delete(c.members, song.ID)
		for i, id := range c.order {
			if id == song.ID {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	} else {
		c.members[song.ID] = song
		c.order = append([]int64{song.ID}, c.order...)
	}
	c.mu.Unlock()

	nowLiked := !liked
	c.logger.Info("Like toggled",
		zap.Int64("song_id", song.ID),
		zap.String("song", song.String()),
		zap.Bool("liked", nowLiked))

	c.scheduler.Go("toggle-like", func(ctx context.Context) error {
		return c.persister.ToggleLike(ctx, song)
	})
	if nowLiked {
		c.RequestCache(song)
	}
	return nowLiked
}

// RequestCache asks the catalog to keep a local copy of song. Duplicate
// requests are harmless.
func (c *Coordinator) RequestCache(song track.Song) {
	if song.Cached {
		return
	}
	c.scheduler.Go("trigger-cache", func(ctx context.Context) error {
		return c.persister.TriggerCache(ctx, song)
	})
}
