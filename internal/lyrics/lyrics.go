package lyrics

import "context"

type Kind uint8

const (
	KindAbsent Kind = iota
	KindPlain
	KindSynced
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindSynced:
		return "synced"
	default:
		return "absent"
	}
}

// KindFromString maps the catalog's "type" field. Anything unknown is absent.
func KindFromString(s string) Kind {
	switch s {
	case "synced":
		return KindSynced
	case "plain":
		return KindPlain
	default:
		return KindAbsent
	}
}

// Payload is the raw lyrics body for a song, before parsing.
type Payload struct {
	Kind Kind
	Text string
}

func (p Payload) IsAbsent() bool {
	return p.Kind == KindAbsent || p.Text == ""
}

// Line is a single time-coded lyric line.
type Line struct {
	Time float64
	Text string
}

// Source looks up lyrics for a song. An absent payload with a nil error means
// the source has nothing for the song.
type Source interface {
	Lyrics(ctx context.Context, artist string, title string) (Payload, error)
}
