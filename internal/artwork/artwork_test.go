package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.RGBA, w int, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAverageColor(t *testing.T) {
	avg, ok := AverageColor(solid(color.RGBA{R: 200, G: 40, B: 40, A: 255}, 16, 16))
	require.True(t, ok)
	assert.InDelta(t, 200, avg.R*255, 2)
	assert.InDelta(t, 40, avg.G*255, 2)
	assert.InDelta(t, 40, avg.B*255, 2)

	_, ok = AverageColor(nil)
	assert.False(t, ok)
}

func TestBackgroundIsDarkerThanAverage(t *testing.T) {
	img := solid(color.RGBA{R: 240, G: 200, B: 100, A: 255}, 8, 8)
	avg, _ := AverageColor(img)

	bg := Background(img)
	assert.NotEqual(t, avg.Hex(), bg)

	_, _, avgV := avg.Hsv()
	bgColor, err := colorful.Hex(bg)
	require.NoError(t, err)
	_, _, bgV := bgColor.Hsv()
	assert.Less(t, bgV, avgV)

	assert.Equal(t, DefaultPalette().Background, Background(nil))
}

func TestGradient(t *testing.T) {
	steps := Gradient("#000000", "#ffffff", 5)
	require.Len(t, steps, 5)
	assert.Equal(t, "#000000", steps[0])
	assert.Equal(t, "#ffffff", steps[4])

	fallback := Gradient("nope", "#ffffff", 3)
	assert.Equal(t, []string{"nope", "nope", "nope"}, fallback)
}

func TestExtractPalette_NilIsDefault(t *testing.T) {
	assert.Equal(t, DefaultPalette(), ExtractPalette(nil))
}

func TestFetch(t *testing.T) {
	data := encodePNG(t, solid(color.RGBA{B: 255, A: 255}, 4, 4))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	img, err := Fetch(context.Background(), server.Client(), server.URL+"/cover.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = Fetch(context.Background(), server.Client(), server.URL+"/missing.png")
	assert.Error(t, err)

	_, err = Fetch(context.Background(), nil, "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	img, err = Fetch(context.Background(), nil, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestRenderHalfBlockArt(t *testing.T) {
	lines := RenderHalfBlockArt(solid(color.RGBA{G: 255, A: 255}, 10, 10), 8, 4)
	assert.Len(t, lines, 4)

	assert.Nil(t, RenderHalfBlockArt(nil, 8, 4))
	assert.Nil(t, RenderHalfBlockArt(solid(color.RGBA{}, 2, 2), 2, 1))
}

func TestEncodeKitty(t *testing.T) {
	out := EncodeKitty(solid(color.RGBA{R: 10, A: 255}, 64, 64), 6, 3)
	assert.True(t, len(out) > 0)
	assert.Contains(t, out, "a=T,f=100,c=6,r=3")

	assert.Empty(t, EncodeKitty(nil, 6, 3))
	assert.Empty(t, EncodeKitty(solid(color.RGBA{}, 4, 4), 0, 3))
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(200, 100, 60, 60)
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)

	w, h = fitWithin(1, 100, 60, 60)
	assert.Equal(t, 10, w)
	assert.Equal(t, 60, h)
}
