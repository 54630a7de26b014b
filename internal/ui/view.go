package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"

	"karolbroda.com/encore/internal/artwork"
	"karolbroda.com/encore/internal/session"
)

const (
	errorColor = "#FF6B6B"
	heartColor = "#E85A8B"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	palette := m.palette
	if palette == nil {
		palette = artwork.DefaultPalette()
	}

	var lines []string
	if !m.hasSong {
		lines = m.renderIdleScreen(palette, width, height)
	} else {
		lines = m.renderMainScreen(palette, width, height)
	}
	return strings.Join(fitHeight(lines, height), "\n")
}

func (m Model) renderIdleScreen(palette *artwork.Palette, width int, height int) []string {
	banner := figure.NewFigure("encore", "", true).Slicify()
	for len(banner) > 0 && strings.TrimSpace(banner[len(banner)-1]) == "" {
		banner = banner[:len(banner)-1]
	}

	top := max(0, (height-len(banner)-3)/2)
	lines := make([]string, top, height)

	gradient := palette.Gradient
	for i, row := range banner {
		color := palette.Primary
		if len(gradient) > 0 {
			color = gradient[i*(len(gradient)-1)/max(1, len(banner)-1)]
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		lines = append(lines, centerText(style.Render(row), width))
	}

	lines = append(lines, "")
	waitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
	lines = append(lines, centerText(waitStyle.Render("awaiting music"), width))

	pulse := []string{"·", "•", "●", "•"}
	pulseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	lines = append(lines, centerText(pulseStyle.Render(pulse[(m.tickCount/4)%len(pulse)]), width))

	return lines
}

func (m Model) renderMainScreen(palette *artwork.Palette, width int, height int) []string {
	var header []string
	if !m.hideHeader {
		header = m.renderHeader(palette, width)
	}
	footer := m.renderFooter(palette, width)

	lyricsHeight := max(0, height-len(header)-len(footer))

	lines := make([]string, 0, height)
	lines = append(lines, header...)
	lines = append(lines, fitHeight(m.renderLyrics(palette, width, lyricsHeight), lyricsHeight)...)
	lines = append(lines, footer...)
	return lines
}

func (m Model) renderHeader(palette *artwork.Palette, width int) []string {
	// the cover's average colour, as a band across the top
	band := lipgloss.NewStyle().Background(lipgloss.Color(palette.Background)).Width(width).Render("")
	lines := []string{band}

	artWidth, artHeight := 12, 6
	if width < 80 {
		artWidth, artHeight = 8, 4
	}
	if width < 50 || m.height < 25 {
		artWidth, artHeight = 0, 0
	}

	info := m.renderTrackInfo(palette, width)

	kitty := ""
	if m.kitty && artWidth > 0 && m.image != nil {
		kitty = artwork.EncodeKitty(m.image, artWidth, artHeight)
	}

	if kitty != "" {
		lines = append(lines, "  "+kitty)
		for i := 0; i < artHeight-1; i++ {
			lines = append(lines, "  ")
		}
		for _, row := range info {
			lines = append(lines, "  "+row)
		}
	} else {
		var art []string
		if artWidth > 0 {
			art = artwork.RenderHalfBlockArt(m.image, artWidth, artHeight)
		}
		rows := max(len(art), len(info))
		for i := 0; i < rows; i++ {
			var line strings.Builder
			if artWidth > 0 {
				if i < len(art) {
					line.WriteString("  " + art[i] + "  ")
				} else {
					line.WriteString(strings.Repeat(" ", artWidth+4))
				}
			} else {
				line.WriteString("  ")
			}
			if i < len(info) {
				line.WriteString(info[i])
			}
			lines = append(lines, line.String())
		}
	}

	lines = append(lines, "")
	if m.duration > 0 {
		lines = append(lines, m.renderProgress(palette, width))
	}
	lines = append(lines, "")
	return lines
}

func (m Model) renderTrackInfo(palette *artwork.Palette, width int) []string {
	np := m.nowPlaying
	maxWidth := max(20, width-20)

	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true)
	artistStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	artist := np.Song.Artist
	if np.ArtistPending {
		artist = "Loading..."
	}

	lines := []string{
		titleStyle.Render(truncate(np.Song.Title, maxWidth)),
		artistStyle.Render(truncate(artist, maxWidth)),
	}
	if np.Song.Album != "" {
		lines = append(lines, dimStyle.Render(truncate(np.Song.Album, maxWidth)))
	}

	status := dimStyle.Render(stateGlyph(m.state))
	if np.Liked {
		status += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(heartColor)).Render("♥")
	}
	if np.Err != "" {
		status += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor)).Render(truncate(np.Err, maxWidth))
	}
	lines = append(lines, "", status)
	return lines
}

func stateGlyph(state session.State) string {
	switch state {
	case session.StateLoading:
		return "… loading"
	case session.StatePlaying:
		return "▶ playing"
	case session.StatePaused:
		return "⏸ paused"
	case session.StateEnded:
		return "■ ended"
	case session.StateError:
		return "✕ unavailable"
	default:
		return ""
	}
}

func (m Model) renderProgress(palette *artwork.Palette, width int) string {
	barWidth := max(20, width-20)

	progress := 0.0
	if m.duration > 0 {
		progress = min(1, max(0, m.position/m.duration))
	}
	filled := int(float64(barWidth) * progress)

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteString(filledStyle.Render("━"))
		case i == filled:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(formatTime(m.position)),
		bar.String(),
		timeStyle.Render(formatTime(m.duration)))
}

func (m Model) renderLyrics(palette *artwork.Palette, width int, height int) []string {
	if height <= 0 {
		return nil
	}
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	if !m.lyricsVisible {
		return centered(dimStyle.Italic(true).Render("lyrics hidden"), width, height)
	}

	switch m.lyrics.Status {
	case session.LyricsSearching:
		spinner := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).
			Render(spinnerFrames[m.tickCount%len(spinnerFrames)])
		return centered(spinner+dimStyle.Render(" searching lyrics"), width, height)

	case session.LyricsUnavailable:
		return centered(dimStyle.Render("Lyrics not available."), width, height)

	case session.LyricsPlain:
		return m.renderPlainLyrics(palette, width, height)

	case session.LyricsSynced:
		if len(m.lyrics.Lines) == 0 {
			return centered(dimStyle.Render("♪"), width, height)
		}
		return m.renderSyncedLyrics(palette, width, height)
	}
	return nil
}

func (m Model) renderPlainLyrics(palette *artwork.Palette, width int, height int) []string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	var lines []string
	for _, row := range strings.Split(m.lyrics.Text, "\n") {
		row = strings.TrimRight(row, "\r")
		lines = append(lines, centerText(style.Render(truncate(row, width-4)), width))
		if len(lines) == height {
			break
		}
	}
	return lines
}

// renderSyncedLyrics lays out a window of lines around the focus line, each
// followed by a blank spacer row, and shifts it while a slide is running.
func (m Model) renderSyncedLyrics(palette *artwork.Palette, width int, height int) []string {
	const lineHeight = 2

	focus := m.focusIndex()
	if focus < 0 {
		focus = 0
	}

	output := make([]string, height)
	center := height / 2
	shift := m.slide.rows(lineHeight)

	for idx := range m.lyrics.Lines {
		row := center + (idx-focus)*lineHeight + shift
		if row < 0 || row >= height {
			continue
		}
		output[row] = m.renderLyricLine(palette, idx, width)
	}
	return output
}

func (m Model) renderLyricLine(palette *artwork.Palette, idx int, width int) string {
	text := m.lyrics.Lines[idx].Text
	if text == "" {
		text = "···"
	}
	text = truncate(text, width-6)

	switch {
	case idx == m.cursor:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent)).Underline(true)
		return centerText("› "+style.Render(text), width)

	case idx == m.active:
		color := palette.Primary
		if len(palette.Gradient) > 0 {
			color = palette.Gradient[(m.tickCount/2)%len(palette.Gradient)]
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		return centerText(style.Render(text), width)

	default:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
		distance := idx - m.active
		if distance < -1 || distance > 2 {
			style = style.Faint(true)
		}
		return centerText(style.Render(text), width)
	}
}

func (m Model) renderFooter(palette *artwork.Palette, width int) []string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent))

	var parts []string
	if len(m.queue) > 0 {
		next := accentStyle.Render(fmt.Sprintf("queue %d", len(m.queue))) +
			dimStyle.Render(" · next: "+truncate(m.queue[0].Title, 30))
		parts = append(parts, next)
	}
	if len(m.liked) > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("♥ %d", len(m.liked))))
	}
	if m.syncOffset != 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("offset %+.1fs", m.syncOffset)))
	}
	if m.hasVolume {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("vol %d%%", volumePercent(m.volume))))
	}
	if flash := m.flashText(); flash != "" {
		parts = append(parts, accentStyle.Render(flash))
	}

	hints := dimStyle.Faint(true).Render("space play · n next · r restart · ,/. seek · f like · v/V volume · ↑↓ enter jump · tab lyrics · q quit")
	return []string{
		"  " + strings.Join(parts, dimStyle.Render("  │  ")),
		centerText(hints, width),
	}
}

func volumePercent(volume float64) int {
	return int(math.Round(volume * 100))
}

func centered(text string, width int, height int) []string {
	lines := make([]string, max(0, height/2-1), height)
	return append(lines, centerText(text, width))
}

func centerText(text string, screenWidth int) string {
	padding := max(0, (screenWidth-lipgloss.Width(text))/2)
	return strings.Repeat(" ", padding) + text
}

func fitHeight(lines []string, height int) []string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines[:height]
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 1 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func formatTime(seconds float64) string {
	total := max(0, int(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
