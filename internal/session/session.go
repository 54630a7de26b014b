// Package session owns the current song and sequences everything that
// happens around it: audio resolution, lyrics, the queue and likes.
package session

import (
	"context"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/track"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

type LyricsStatus int

const (
	LyricsSearching LyricsStatus = iota
	LyricsSynced
	LyricsPlain
	LyricsUnavailable
)

// NowPlaying is the header view of the current song. ArtistPending is set
// until the audio source has been resolved one way or the other.
type NowPlaying struct {
	Song          track.Song
	ArtistPending bool
	Liked         bool
	Err           string
}

type LyricsView struct {
	Status LyricsStatus
	Lines  []lyrics.Line
	Text   string
}

// Renderer receives view state from the controller. Calls are made while
// the controller holds its lock, so implementations must not block or call
// back into the controller.
type Renderer interface {
	lyrics.Highlighter
	NowPlaying(NowPlaying)
	PlaybackState(State)
	Lyrics(LyricsView)
	Queue([]track.Song)
	Liked([]track.Song)
	Progress(position float64, duration float64)
	Volume(volume float64)
}

type NopRenderer struct{}

func (NopRenderer) Highlight(lyrics.Directive) {}
func (NopRenderer) NowPlaying(NowPlaying)      {}
func (NopRenderer) PlaybackState(State)        {}
func (NopRenderer) Lyrics(LyricsView)          {}
func (NopRenderer) Queue([]track.Song)         {}
func (NopRenderer) Liked([]track.Song)         {}
func (NopRenderer) Progress(float64, float64)  {}
func (NopRenderer) Volume(float64)             {}

// Catalog is the part of the catalog service the controller needs.
type Catalog interface {
	Resolve(ctx context.Context, song track.Song) (string, error)
	Recommendations(ctx context.Context, artistID int64) ([]track.Song, error)
}

type Likes interface {
	IsLiked(id int64) bool
	Toggle(song track.Song) bool
	RequestCache(song track.Song)
	Songs() []track.Song
}

type Recents interface {
	Record(ctx context.Context, song track.Song) error
	FirstWithArtist() (track.Song, bool)
}

// VolumeStore keeps the last volume across runs.
type VolumeStore interface {
	SaveVolume(ctx context.Context, volume float64) error
}

// Snapshot is a copy of the session for readers outside the render path.
type Snapshot struct {
	Song       *track.Song
	State      State
	Position   float64
	Duration   float64
	Liked      bool
	ActiveLine int
	LyricsKind lyrics.Kind
	Queue      []track.Song
	Volume     float64
}
