// Package artwork loads cover images and derives the colours the player is
// themed with.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
)

const gradientSteps = 20

type Palette struct {
	Primary    string
	Secondary  string
	Accent     string
	Dim        string
	Background string
	Gradient   []string
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:    "#8BA4E8",
		Secondary:  "#E8A4C8",
		Accent:     "#B8A8E8",
		Dim:        "#6272A4",
		Background: "#121212",
		Gradient:   Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

// Fetch loads an image from an http(s) or file:// URL.
func Fetch(ctx context.Context, client *http.Client, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, errors.New("empty artwork url")
	}

	if path, ok := strings.CutPrefix(artworkURL, "file://"); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open artwork file: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artwork image: %w", err)
		}
		return img, nil
	}

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

type scoredColor struct {
	color      colorful.Color
	saturation float64
	brightness float64
	score      float64
}

// ExtractPalette picks three vivid colours from the cover, ordered by
// brightness, plus a darkened average for the background.
func ExtractPalette(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	items, err := prominentcolor.KmeansWithAll(5, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) < 3 {
		return DefaultPalette()
	}

	scored := make([]scoredColor, 0, len(items))
	for _, item := range items {
		c := colorful.Color{
			R: float64(item.Color.R) / 255,
			G: float64(item.Color.G) / 255,
			B: float64(item.Color.B) / 255,
		}
		_, s, v := c.Hsv()
		scored = append(scored, scoredColor{
			color:      c,
			saturation: s,
			brightness: v,
			score:      s * (1 - math.Abs(v-0.6)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	picked := make([]scoredColor, 0, 3)
	for _, sc := range scored {
		if len(picked) == 3 {
			break
		}
		if sc.brightness > 0.25 && sc.saturation > 0.1 {
			picked = append(picked, sc)
		}
	}
	for _, sc := range scored {
		if len(picked) == 3 {
			break
		}
		if !containsColor(picked, sc.color) {
			picked = append(picked, sc)
		}
	}
	if len(picked) < 3 {
		return DefaultPalette()
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].brightness > picked[j].brightness })

	primary := boost(picked[0])
	accent := boost(picked[1])
	secondary := boost(picked[2])

	return &Palette{
		Primary:    primary,
		Secondary:  secondary,
		Accent:     accent,
		Dim:        "#6272A4",
		Background: Background(img),
		Gradient:   Gradient(primary, secondary, gradientSteps),
	}
}

func containsColor(list []scoredColor, c colorful.Color) bool {
	for _, sc := range list {
		if sc.color == c {
			return true
		}
	}
	return false
}

// boost lifts dark colours and tones down glaring ones so they read on a
// dark terminal.
func boost(sc scoredColor) string {
	h, s, v := sc.color.Hsv()
	if v < 0.4 {
		v = math.Min(0.4, v*2.5)
	}
	if v > 0.85 {
		s *= 0.7
	}
	return colorful.Hsv(h, s, v).Clamped().Hex()
}

// AverageColor scales the image to a single pixel.
func AverageColor(img image.Image) (colorful.Color, bool) {
	if img == nil {
		return colorful.Color{}, false
	}
	pixel := resize.Resize(1, 1, img, resize.Bilinear)
	bounds := pixel.Bounds()
	return colorful.MakeColor(pixel.At(bounds.Min.X, bounds.Min.Y))
}

// Background is the cover's average colour, darkened for use behind text.
func Background(img image.Image) string {
	avg, ok := AverageColor(img)
	if !ok {
		return DefaultPalette().Background
	}
	return avg.BlendLab(colorful.Color{}, 0.7).Clamped().Hex()
}

// Gradient interpolates in Luv space so midpoints don't turn muddy.
func Gradient(startHex string, endHex string, steps int) []string {
	if steps < 2 {
		steps = 2
	}
	start, errStart := colorful.Hex(startHex)
	end, errEnd := colorful.Hex(endHex)
	if errStart != nil || errEnd != nil {
		out := make([]string, steps)
		for i := range out {
			out[i] = startHex
		}
		return out
	}

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		out[i] = start.BlendLuv(end, t).Clamped().Hex()
	}
	out[0], out[steps-1] = start.Hex(), end.Hex()
	return out
}

// RenderHalfBlockArt draws img with upper half blocks, two pixels per cell.
func RenderHalfBlockArt(img image.Image, targetWidth int, targetHeight int) []string {
	if img == nil || targetWidth < 4 || targetHeight < 2 {
		return nil
	}

	resized := resize.Resize(uint(targetWidth), uint(targetHeight*2), img, resize.Lanczos3)
	bounds := resized.Bounds()

	lines := make([]string, targetHeight)
	for y := 0; y < targetHeight; y++ {
		var line strings.Builder
		for x := 0; x < bounds.Dx(); x++ {
			top, topOK := colorful.MakeColor(resized.At(bounds.Min.X+x, bounds.Min.Y+2*y))
			bottom, bottomOK := colorful.MakeColor(resized.At(bounds.Min.X+x, bounds.Min.Y+2*y+1))
			if !topOK && !bottomOK {
				line.WriteString(" ")
				continue
			}
			if !bottomOK {
				bottom = top
			}
			if !topOK {
				top = bottom
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.Hex())).
				Background(lipgloss.Color(bottom.Hex()))
			line.WriteString(style.Render("▀"))
		}
		lines[y] = line.String()
	}
	return lines
}
