package queue

import (
	"errors"
	"fmt"
	"sync"

	"karolbroda.com/encore/internal/track"
)

var (
	ErrIndexOutOfRange = errors.New("queue index out of range")
	ErrInvalidSong     = errors.New("invalid song")
)

// Queue is the FIFO of songs waiting to play. Duplicates are allowed.
type Queue struct {
	mu    sync.RWMutex
	songs []track.Song
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends song to the tail. Zero-value songs are rejected so the
// queue never holds an empty entry.
func (q *Queue) Enqueue(song track.Song) error {
	if !song.IsValid() {
		return ErrInvalidSong
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = append(q.songs, song)
	return nil
}

// DequeueNext removes and returns the head. ok is false when empty.
func (q *Queue) DequeueNext() (song track.Song, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return track.Song{}, false
	}

	song = q.songs[0]
	q.songs[0] = track.Song{}
	q.songs = q.songs[1:]
	return song, true
}

func (q *Queue) RemoveAt(index int) (track.Song, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.songs) {
		return track.Song{}, fmt.Errorf("remove %d of %d: %w", index, len(q.songs), ErrIndexOutOfRange)
	}

	removed := q.songs[index]
	q.songs = append(q.songs[:index:index], q.songs[index+1:]...)
	return removed, nil
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.songs)
}

// Snapshot returns a copy of the pending songs in play order.
func (q *Queue) Snapshot() []track.Song {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]track.Song, len(q.songs))
	copy(out, q.songs)
	return out
}
