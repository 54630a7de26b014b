package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/artwork"
	"karolbroda.com/encore/internal/lyrics"
	"karolbroda.com/encore/internal/session"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case bridgeMsg:
		cmd := m.apply(msg.msg)
		return m, tea.Batch(cmd, m.bridge.Listen())

	case artworkMsg:
		return m.handleArtworkFetched(msg), nil

	case tickMsg:
		m.tickCount++
		m.slide.step()
		return m, tickCmd()
	}

	return m, nil
}

// apply folds one controller render call into the model.
func (m *Model) apply(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case nowPlayingMsg:
		return m.handleNowPlaying(session.NowPlaying(msg))

	case stateMsg:
		m.state = session.State(msg)

	case lyricsMsg:
		m.lyrics = session.LyricsView(msg)
		m.active = -1
		m.cursor = -1
		m.slide.start(-1, -1)

	case highlightMsg:
		d := lyrics.Directive(msg)
		m.slide.start(m.active, d.Index)
		m.active = d.Index
		if d.Center {
			m.cursor = -1
		}

	case queueMsg:
		m.queue = msg

	case likedMsg:
		m.liked = msg

	case progressMsg:
		m.position = msg.position
		m.duration = msg.duration

	case volumeMsg:
		m.volume = float64(msg)
		m.hasVolume = true
	}
	return nil
}

func (m *Model) handleNowPlaying(np session.NowPlaying) tea.Cmd {
	if !m.hasSong || !m.nowPlaying.Song.IsSameSong(np.Song) {
		m.lyrics = session.LyricsView{Status: session.LyricsSearching}
		m.active = -1
		m.cursor = -1
		m.position = 0
		m.duration = float64(np.Song.DurationSecs)
		m.slide.start(-1, -1)
	}
	m.nowPlaying = np
	m.hasSong = true

	url := coverURL(np.Song)
	if url == m.coverURL {
		return nil
	}
	m.coverURL = url
	m.image = nil
	m.palette = artwork.DefaultPalette()
	if url == "" {
		return nil
	}
	return fetchArtworkCmd(m.httpClient, url)
}

func (m Model) handleArtworkFetched(msg artworkMsg) Model {
	// a later song may have replaced the cover in the meantime
	if msg.url != m.coverURL {
		return m
	}
	if msg.err != nil {
		m.logger.Debug("Failed to fetch artwork", zap.String("url", msg.url), zap.Error(msg.err))
		return m
	}
	m.image = msg.image
	if msg.palette != nil {
		m.palette = msg.palette
	}
	return m
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case " ", "space":
		m.report("toggle playback", m.controls.TogglePlay())

	case "n":
		m.report("skip", m.controls.Next(true))

	case "r":
		m.report("restart", m.controls.Restart())

	case ",", "left":
		m.seekBy(-seekStep)

	case ".", "right":
		m.seekBy(seekStep)

	case "f":
		liked, err := m.controls.ToggleLikeCurrent()
		if errors.Is(err, session.ErrNoSong) {
			return m, nil
		}
		if m.report("like", err) {
			return m, nil
		}
		if liked {
			m.setFlash("♥ liked")
		} else {
			m.setFlash("♡ unliked")
		}

	case "+", "=":
		m.adjustOffset(0.1)
	case "-":
		m.adjustOffset(-0.1)
	case "]":
		m.adjustOffset(0.5)
	case "[":
		m.adjustOffset(-0.5)
	case "0":
		m.adjustOffset(-m.syncOffset)

	case "v":
		m.adjustVolume(-volumeStep)
	case "V":
		m.adjustVolume(volumeStep)

	case "tab":
		m.lyricsVisible = !m.lyricsVisible
		m.controls.SetLyricsVisible(m.lyricsVisible)

	case "i":
		m.hideHeader = !m.hideHeader

	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "esc":
		m.cursor = -1

	case "enter":
		if m.cursor >= 0 {
			m.report("seek to line", m.controls.SeekToLine(m.cursor))
			m.cursor = -1
		}

	case "x":
		song, err := m.controls.RemoveFromQueue(0)
		if err == nil {
			m.setFlash("removed " + song.Title + " from queue")
		}
	}

	return m, nil
}

func (m *Model) adjustVolume(delta float64) {
	volume, err := m.controls.AdjustVolume(delta)
	if m.report("volume", err) {
		return
	}
	m.volume = volume
	m.hasVolume = true
	m.setFlash(fmt.Sprintf("volume %d%%", volumePercent(volume)))
}

// report logs and flashes err, returning whether there was one.
func (m *Model) report(action string, err error) bool {
	if err == nil {
		return false
	}
	m.logger.Warn("Player action failed", zap.String("action", action), zap.Error(err))
	m.setFlash(action + " failed")
	return true
}

func (m *Model) seekBy(delta float64) {
	if m.duration <= 0 {
		return
	}
	fraction := (m.position + delta) / m.duration
	m.report("seek", m.controls.Seek(fraction))
}

func (m *Model) adjustOffset(delta float64) {
	if delta == 0 {
		return
	}
	m.syncOffset = m.controls.AdjustSyncOffset(delta)
	m.setFlash(fmt.Sprintf("sync offset %+.1fs", m.syncOffset))
}

func (m *Model) moveCursor(step int) {
	if m.lyrics.Status != session.LyricsSynced || len(m.lyrics.Lines) == 0 {
		return
	}
	cursor := m.focusIndex()
	if cursor < 0 {
		cursor = 0
	} else {
		cursor += step
	}
	m.cursor = max(0, min(cursor, len(m.lyrics.Lines)-1))
}

func fetchArtworkCmd(client *http.Client, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		img, err := artwork.Fetch(ctx, client, url)
		if err != nil {
			return artworkMsg{url: url, err: err}
		}
		return artworkMsg{url: url, image: img, palette: artwork.ExtractPalette(img)}
	}
}
