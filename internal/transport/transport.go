// Package transport drives the external audio player and reports its
// playback events back to the session.
package transport

import "math"

type EventType int

const (
	EventPlaying EventType = iota
	EventPaused
	EventTimeUpdate
	EventEnded
)

func (t EventType) String() string {
	switch t {
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event carries the playback position in seconds for time updates.
type Event struct {
	Type     EventType
	Position float64
}

// Transport is the audio player contract. Positions and durations are in
// seconds; Duration is zero while unknown. Volume is linear in [0, 1].
type Transport interface {
	SetSource(url string) error
	Play() error
	Pause() error
	Position() (float64, error)
	Seek(seconds float64) error
	Duration() float64
	Volume() (float64, error)
	SetVolume(volume float64) error
	Events() <-chan Event
}

// ClampVolume limits volume to [0, 1]. NaN reads as silence.
func ClampVolume(volume float64) float64 {
	switch {
	case math.IsNaN(volume), volume < 0:
		return 0
	case volume > 1:
		return 1
	default:
		return volume
	}
}
