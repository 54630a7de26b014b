package likes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/encore/internal/track"
)

type fakePersister struct {
	mu        sync.Mutex
	toggled   []int64
	cached    []int64
	liked     []track.Song
	toggleErr error
	listErr   error
}

func (f *fakePersister) ToggleLike(_ context.Context, song track.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, song.ID)
	return f.toggleErr
}

func (f *fakePersister) TriggerCache(_ context.Context, song track.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = append(f.cached, song.ID)
	return nil
}

func (f *fakePersister) LikedSongs(context.Context) ([]track.Song, error) {
	return f.liked, f.listErr
}

// inline runs tasks synchronously.
type inline struct{}

func (inline) Go(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

var (
	songA = track.Song{ID: 1, Title: "A", Artist: "X"}
	songB = track.Song{ID: 2, Title: "B", Artist: "Y"}
)

func TestCoordinator_ToggleOnPersistsAndCaches(t *testing.T) {
	p := &fakePersister{}
	c := NewCoordinator(p, inline{}, nil)

	assert.True(t, c.Toggle(songA))
	assert.True(t, c.IsLiked(songA.ID))
	assert.Equal(t, []int64{1}, p.toggled)
	assert.Equal(t, []int64{1}, p.cached)
}

func TestCoordinator_DoubleToggleRestoresMembership(t *testing.T) {
	p := &fakePersister{}
	c := NewCoordinator(p, inline{}, nil)

	c.Toggle(songA)
	c.Toggle(songA)

	assert.False(t, c.IsLiked(songA.ID))
	assert.Zero(t, c.Len())
	assert.Equal(t, []int64{1, 1}, p.toggled)
	assert.Equal(t, []int64{1}, p.cached)
}

func TestCoordinator_FailureDoesNotRollBack(t *testing.T) {
	p := &fakePersister{toggleErr: errors.New("offline")}
	c := NewCoordinator(p, inline{}, nil)

	c.Toggle(songB)
	assert.True(t, c.IsLiked(songB.ID))
}

func TestCoordinator_SongsMostRecentFirst(t *testing.T) {
	c := NewCoordinator(&fakePersister{}, inline{}, nil)
	c.Toggle(songA)
	c.Toggle(songB)

	assert.Equal(t, []track.Song{songB, songA}, c.Songs())
}

func TestCoordinator_Refresh(t *testing.T) {
	p := &fakePersister{liked: []track.Song{songA, songB, songA, {}}}
	c := NewCoordinator(p, inline{}, nil)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.IsLiked(songB.ID))

	p.listErr = errors.New("unauthorized")
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Len())
}

func TestCoordinator_RequestCacheSkipsCachedSongs(t *testing.T) {
	p := &fakePersister{}
	c := NewCoordinator(p, inline{}, nil)

	cached := songA
	cached.Cached = true
	c.RequestCache(cached)
	c.RequestCache(songB)

	assert.Equal(t, []int64{2}, p.cached)
}
