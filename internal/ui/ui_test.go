package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/queue"
	"karolbroda.com/encore/internal/session"
	"karolbroda.com/encore/internal/track"
)

type fakeControls struct {
	toggles   int
	nexts     []bool
	restarts  int
	seeks     []float64
	lineSeeks []int
	visible   []bool
	offset    float64
	liked     bool
	removed   []int
	queue     []track.Song
	toggleErr error
	volume    float64
}

func (f *fakeControls) TogglePlay() error {
	f.toggles++
	return f.toggleErr
}

func (f *fakeControls) Next(isUserAction bool) error {
	f.nexts = append(f.nexts, isUserAction)
	return nil
}

func (f *fakeControls) Restart() error {
	f.restarts++
	return nil
}

func (f *fakeControls) Seek(fraction float64) error {
	f.seeks = append(f.seeks, fraction)
	return nil
}

func (f *fakeControls) SeekToLine(index int) error {
	f.lineSeeks = append(f.lineSeeks, index)
	return nil
}

func (f *fakeControls) ToggleLikeCurrent() (bool, error) {
	f.liked = !f.liked
	return f.liked, nil
}

func (f *fakeControls) SetLyricsVisible(visible bool) {
	f.visible = append(f.visible, visible)
}

func (f *fakeControls) AdjustSyncOffset(delta float64) float64 {
	f.offset += delta
	return f.offset
}

func (f *fakeControls) RemoveFromQueue(index int) (track.Song, error) {
	if index >= len(f.queue) {
		return track.Song{}, queue.ErrIndexOutOfRange
	}
	f.removed = append(f.removed, index)
	song := f.queue[index]
	f.queue = append(f.queue[:index], f.queue[index+1:]...)
	return song, nil
}

func (f *fakeControls) AdjustVolume(delta float64) (float64, error) {
	f.volume = min(1, max(0, f.volume+delta))
	return f.volume, nil
}

var song = track.Song{ID: 7, Title: "Harder Better", Artist: "Daft Punk", ArtistID: 27, DurationSecs: 200}

func newTestModel(t *testing.T) (Model, *fakeControls) {
	t.Helper()
	controls := &fakeControls{}
	m := NewModel(ModelConfig{Controls: controls, Bridge: NewBridge(16)})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, controls
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func bridged(msg tea.Msg) tea.Msg { return bridgeMsg{msg: msg} }

var synced = session.LyricsView{
	Status: session.LyricsSynced,
	Lines: []lyrics.Line{
		{Time: 0, Text: "work it"},
		{Time: 5, Text: "make it"},
		{Time: 10, Text: "do it"},
	},
}

func TestBridge_DropsWhenFull(t *testing.T) {
	b := NewBridge(2)
	for i := 0; i < 5; i++ {
		b.Progress(float64(i), 100)
	}
	assert.Equal(t, int64(3), b.Dropped())

	msg := b.Listen()()
	require.IsType(t, bridgeMsg{}, msg)
	assert.Equal(t, progressMsg{position: 0, duration: 100}, msg.(bridgeMsg).msg)

	_ = b.Listen()()
	b.Close()
	b.Close()
	assert.Nil(t, b.Listen()())
}

func TestBridge_StateMessagesWaitForRoom(t *testing.T) {
	b := NewBridge(1)
	b.sendTimeout = 5 * time.Second
	b.Progress(1, 100)
	b.Progress(2, 100)
	require.Equal(t, int64(1), b.Dropped())

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		b.Lyrics(session.LyricsView{Status: session.LyricsPlain, Text: "words"})
		b.PlaybackState(session.StatePlaying)
	}()

	first := b.Listen()().(bridgeMsg).msg
	assert.Equal(t, progressMsg{position: 1, duration: 100}, first)
	second := b.Listen()().(bridgeMsg).msg
	assert.Equal(t, lyricsMsg{Status: session.LyricsPlain, Text: "words"}, second)
	third := b.Listen()().(bridgeMsg).msg
	assert.Equal(t, stateMsg(session.StatePlaying), third)

	<-sent
	assert.Equal(t, int64(1), b.Dropped())
}

func TestBridge_StateMessageDroppedAfterTimeout(t *testing.T) {
	b := NewBridge(1)
	b.sendTimeout = 10 * time.Millisecond
	b.Volume(0.5)
	b.Volume(0.6)

	assert.Equal(t, int64(1), b.Dropped())
	assert.Equal(t, volumeMsg(0.5), b.Listen()().(bridgeMsg).msg)
}

func TestBridge_CopiesSongSlices(t *testing.T) {
	b := NewBridge(4)
	songs := []track.Song{song}
	b.Queue(songs)
	songs[0].Title = "changed"

	msg := b.Listen()().(bridgeMsg).msg
	assert.Equal(t, "Harder Better", msg.(queueMsg)[0].Title)
}

func TestModel_NowPlayingResetsSong(t *testing.T) {
	m, _ := newTestModel(t)

	m = update(t, m, bridged(nowPlayingMsg{Song: song, ArtistPending: true}))
	assert.True(t, m.hasSong)
	assert.Equal(t, session.LyricsSearching, m.lyrics.Status)
	assert.Equal(t, 200.0, m.duration)
	assert.Contains(t, m.View(), "Loading...")

	m = update(t, m, bridged(lyricsMsg(synced)))
	m = update(t, m, bridged(highlightMsg{Index: 1, Center: true}))
	assert.Equal(t, 1, m.active)

	// same song again keeps lyrics, a new one clears them
	m = update(t, m, bridged(nowPlayingMsg{Song: song, Liked: true}))
	assert.Equal(t, 1, m.active)
	assert.Contains(t, m.View(), "Daft Punk")

	other := track.Song{ID: 8, Title: "Other", Artist: "Someone"}
	m = update(t, m, bridged(nowPlayingMsg{Song: other}))
	assert.Equal(t, -1, m.active)
	assert.Equal(t, session.LyricsSearching, m.lyrics.Status)
}

func TestModel_StaleArtworkIgnored(t *testing.T) {
	m, _ := newTestModel(t)
	m.coverURL = "http://covers/b.jpg"

	m = update(t, m, artworkMsg{url: "http://covers/a.jpg", image: nil, palette: nil})
	assert.Nil(t, m.image)

	m = update(t, m, artworkMsg{url: "http://covers/b.jpg", err: errors.New("boom")})
	assert.NotNil(t, m.palette)
}

func TestModel_PlaybackKeys(t *testing.T) {
	m, controls := newTestModel(t)
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))
	m = update(t, m, bridged(progressMsg{position: 50, duration: 100}))

	m = update(t, m, key(" "))
	m = update(t, m, key("n"))
	m = update(t, m, key("r"))
	m = update(t, m, key(","))
	m = update(t, m, key("."))

	assert.Equal(t, 1, controls.toggles)
	assert.Equal(t, []bool{true}, controls.nexts)
	assert.Equal(t, 1, controls.restarts)
	require.Len(t, controls.seeks, 2)
	assert.InDelta(t, 0.45, controls.seeks[0], 1e-9)
	assert.InDelta(t, 0.55, controls.seeks[1], 1e-9)

	m = update(t, m, key("f"))
	assert.True(t, controls.liked)
	assert.Contains(t, m.View(), "liked")
}

func TestModel_FailedActionIsFlashed(t *testing.T) {
	m, controls := newTestModel(t)
	controls.toggleErr = errors.New("dbus gone")
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))

	m = update(t, m, key(" "))
	assert.Contains(t, m.View(), "toggle playback failed")
}

func TestModel_SyncOffsetKeys(t *testing.T) {
	m, controls := newTestModel(t)

	m = update(t, m, key("+"))
	m = update(t, m, key("]"))
	assert.InDelta(t, 0.6, m.syncOffset, 1e-9)

	m = update(t, m, key("-"))
	m = update(t, m, key("["))
	assert.InDelta(t, 0.0, m.syncOffset, 1e-9)

	m = update(t, m, key("]"))
	m = update(t, m, key("0"))
	assert.InDelta(t, 0.0, m.syncOffset, 1e-9)
	assert.InDelta(t, 0.0, controls.offset, 1e-9)
}

func TestModel_VolumeKeys(t *testing.T) {
	m, controls := newTestModel(t)
	controls.volume = 0.5
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))

	m = update(t, m, key("V"))
	m = update(t, m, key("V"))
	m = update(t, m, key("v"))
	assert.InDelta(t, 0.55, controls.volume, 1e-9)
	assert.InDelta(t, 0.55, m.volume, 1e-9)
	assert.Contains(t, m.View(), "volume 55%")

	m = update(t, m, bridged(volumeMsg(0.2)))
	assert.InDelta(t, 0.2, m.volume, 1e-9)
	assert.Contains(t, m.View(), "vol 20%")
}

func TestModel_TabTogglesLyricsVisibility(t *testing.T) {
	m, controls := newTestModel(t)
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))

	m = update(t, m, key("tab"))
	assert.Contains(t, m.View(), "lyrics hidden")
	m = update(t, m, key("tab"))

	assert.Equal(t, []bool{false, true}, controls.visible)
}

func TestModel_CursorSeeksToLine(t *testing.T) {
	m, controls := newTestModel(t)
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))
	m = update(t, m, bridged(lyricsMsg(synced)))
	m = update(t, m, bridged(highlightMsg{Index: 0, Center: true}))

	m = update(t, m, key("down"))
	m = update(t, m, key("down"))
	m = update(t, m, key("down"))
	assert.Equal(t, 2, m.cursor)

	m = update(t, m, key("enter"))
	assert.Equal(t, []int{2}, controls.lineSeeks)
	assert.Equal(t, -1, m.cursor)
}

func TestModel_CursorIgnoredWithoutSyncedLyrics(t *testing.T) {
	m, controls := newTestModel(t)
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))
	m = update(t, m, bridged(lyricsMsg{Status: session.LyricsPlain, Text: "la la"}))

	m = update(t, m, key("up"))
	m = update(t, m, key("enter"))
	assert.Equal(t, -1, m.cursor)
	assert.Empty(t, controls.lineSeeks)
}

func TestModel_RemoveQueueHead(t *testing.T) {
	m, controls := newTestModel(t)
	controls.queue = []track.Song{song}

	m = update(t, m, key("x"))
	assert.Equal(t, []int{0}, controls.removed)
	assert.Contains(t, m.flash, "Harder Better")

	m = update(t, m, key("x"))
	assert.Equal(t, []int{0}, controls.removed)
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	next, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.True(t, next.(Model).IsQuitting())
	assert.Empty(t, next.(Model).View())
}

func TestView_Screens(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.View(), "awaiting music")

	m = update(t, m, bridged(nowPlayingMsg{Song: song}))
	assert.Contains(t, m.View(), "searching lyrics")

	m = update(t, m, bridged(lyricsMsg{Status: session.LyricsUnavailable}))
	assert.Contains(t, m.View(), "Lyrics not available.")

	m = update(t, m, bridged(lyricsMsg{Status: session.LyricsPlain, Text: "first verse\nsecond verse"}))
	assert.Contains(t, m.View(), "second verse")

	m = update(t, m, bridged(lyricsMsg(synced)))
	m = update(t, m, bridged(highlightMsg{Index: 1, Center: true}))
	m.slide.progress = 1
	view := m.View()
	assert.Contains(t, view, "make it")
	assert.Contains(t, view, "work it")

	m = update(t, m, bridged(queueMsg{{ID: 9, Title: "Up Next", Artist: "X"}}))
	assert.Contains(t, m.View(), "queue 1")
}

func TestView_HeightIsStable(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, bridged(nowPlayingMsg{Song: song}))
	m = update(t, m, bridged(lyricsMsg(synced)))

	for _, height := range []int{10, 24, 40} {
		m = update(t, m, tea.WindowSizeMsg{Width: 90, Height: height})
		assert.Len(t, splitLines(m.View()), height)
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func TestSlide(t *testing.T) {
	var s slide
	s.start(0, 2)
	assert.Equal(t, 4, s.rows(2))
	for i := 0; i < slideTicks; i++ {
		s.step()
	}
	assert.True(t, s.done())
	assert.Zero(t, s.rows(2))

	s.start(-1, 3)
	assert.True(t, s.done())
}

func TestFormatTimeAndTruncate(t *testing.T) {
	assert.Equal(t, "3:05", formatTime(185.7))
	assert.Equal(t, "0:00", formatTime(-3))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
	assert.Equal(t, "short", truncate("short", 10))
}
