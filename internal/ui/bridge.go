package ui

import (
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/session"
	"karolbroda.com/encore/internal/track"
)

const (
	DefaultBridgeBuffer = 256
	// DefaultSendTimeout bounds how long a state message waits for room in a
	// full buffer.
	DefaultSendTimeout = 100 * time.Millisecond
)

type nowPlayingMsg session.NowPlaying

type stateMsg session.State

type lyricsMsg session.LyricsView

type highlightMsg lyrics.Directive

type queueMsg []track.Song

type likedMsg []track.Song

type progressMsg struct {
	position float64
	duration float64
}

type volumeMsg float64

// bridgeMsg wraps everything that came through the bridge so Update knows to
// listen again.
type bridgeMsg struct {
	msg tea.Msg
}

// Bridge turns controller render calls into tea messages. Progress and
// highlight messages are dropped and counted on a full buffer, the next one
// supersedes them. Every other message waits up to sendTimeout for room.
type Bridge struct {
	msgs        chan tea.Msg
	done        chan struct{}
	once        sync.Once
	dropped     atomic.Int64
	sendTimeout time.Duration
}

func NewBridge(buffer int) *Bridge {
	if buffer <= 0 {
		buffer = DefaultBridgeBuffer
	}
	return &Bridge{
		msgs:        make(chan tea.Msg, buffer),
		done:        make(chan struct{}),
		sendTimeout: DefaultSendTimeout,
	}
}

// offer sends msg only if there is room.
func (b *Bridge) offer(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	default:
		b.dropped.Add(1)
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
		return
	default:
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	select {
	case b.msgs <- msg:
	case <-timer.C:
		b.dropped.Add(1)
	case <-b.done:
		b.dropped.Add(1)
	}
}

func (b *Bridge) Highlight(d lyrics.Directive) { b.offer(highlightMsg(d)) }

func (b *Bridge) NowPlaying(np session.NowPlaying) { b.send(nowPlayingMsg(np)) }

func (b *Bridge) PlaybackState(state session.State) { b.send(stateMsg(state)) }

func (b *Bridge) Lyrics(view session.LyricsView) { b.send(lyricsMsg(view)) }

func (b *Bridge) Queue(songs []track.Song) {
	b.send(queueMsg(append([]track.Song(nil), songs...)))
}

func (b *Bridge) Liked(songs []track.Song) {
	b.send(likedMsg(append([]track.Song(nil), songs...)))
}

func (b *Bridge) Progress(position float64, duration float64) {
	b.offer(progressMsg{position: position, duration: duration})
}

func (b *Bridge) Volume(volume float64) { b.send(volumeMsg(volume)) }

// Dropped reports how many messages were discarded.
func (b *Bridge) Dropped() int64 { return b.dropped.Load() }

// Listen waits for the next message. It returns nil once the bridge is
// closed.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return bridgeMsg{msg: msg}
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

var _ session.Renderer = (*Bridge)(nil)
