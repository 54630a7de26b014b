package ui

import (
	"image"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/artwork"
	"karolbroda.com/encore/internal/session"
	"karolbroda.com/encore/internal/track"
)

const (
	tickInterval  = 100 * time.Millisecond
	seekStep      = 5.0
	volumeStep    = 0.05
	flashDuration = 2 * time.Second
)

// Controls is what the UI drives on the session.
type Controls interface {
	TogglePlay() error
	Next(isUserAction bool) error
	Restart() error
	Seek(fraction float64) error
	SeekToLine(index int) error
	ToggleLikeCurrent() (bool, error)
	SetLyricsVisible(visible bool)
	AdjustSyncOffset(delta float64) float64
	RemoveFromQueue(index int) (track.Song, error)
	AdjustVolume(delta float64) (float64, error)
}

type tickMsg time.Time

type artworkMsg struct {
	url     string
	image   image.Image
	palette *artwork.Palette
	err     error
}

type ModelConfig struct {
	Controls      Controls
	Bridge        *Bridge
	HTTPClient    *http.Client
	Logger        *zap.Logger
	SyncOffset    float64
	HideHeader    bool
	KittyGraphics bool
}

type Model struct {
	controls   Controls
	bridge     *Bridge
	httpClient *http.Client
	logger     *zap.Logger
	kitty      bool

	nowPlaying session.NowPlaying
	hasSong    bool
	state      session.State
	lyrics     session.LyricsView
	active     int
	cursor     int
	position   float64
	duration   float64
	queue      []track.Song
	liked      []track.Song
	volume     float64
	hasVolume  bool

	coverURL string
	image    image.Image
	palette  *artwork.Palette

	syncOffset    float64
	lyricsVisible bool
	hideHeader    bool

	flash      string
	flashUntil time.Time

	slide     slide
	width     int
	height    int
	tickCount int
	quitting  bool
}

func NewModel(cfg ModelConfig) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return Model{
		controls:      cfg.Controls,
		bridge:        cfg.Bridge,
		httpClient:    client,
		logger:        logger,
		kitty:         cfg.KittyGraphics,
		active:        -1,
		cursor:        -1,
		palette:       artwork.DefaultPalette(),
		syncOffset:    cfg.SyncOffset,
		lyricsVisible: true,
		hideHeader:    cfg.HideHeader,
		slide:         slide{progress: 1},
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.bridge != nil {
		cmds = append(cmds, m.bridge.Listen())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) setFlash(text string) {
	m.flash = text
	m.flashUntil = time.Now().Add(flashDuration)
}

func (m Model) flashText() string {
	if m.flash == "" || time.Now().After(m.flashUntil) {
		return ""
	}
	return m.flash
}

// focusIndex is the line the lyric window centres on: the manual cursor when
// one is set, otherwise the highlighted line.
func (m Model) focusIndex() int {
	if m.cursor >= 0 {
		return m.cursor
	}
	return m.active
}

func coverURL(song track.Song) string {
	if song.CoverXL != "" {
		return song.CoverXL
	}
	return song.Cover
}

func (m Model) IsQuitting() bool { return m.quitting }
