package artwork

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
)

const (
	kittyChunkSize = 4096
	// approximate cell size in pixels used to size the upload
	cellWidthPx  = 10
	cellHeightPx = 20
)

// EncodeKitty renders img as a kitty graphics protocol escape sequence that
// occupies cols x rows cells. It returns "" when the image can't be encoded.
func EncodeKitty(img image.Image, cols int, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ""
	}

	w, h := fitWithin(bounds.Dx(), bounds.Dy(), cols*cellWidthPx, rows*cellHeightPx)
	resized := resize.Resize(uint(w), uint(h), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return ""
	}
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	for offset := 0; offset < len(payload); offset += kittyChunkSize {
		end := min(offset+kittyChunkSize, len(payload))
		more := 0
		if end < len(payload) {
			more = 1
		}

		if offset == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, payload[offset:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, payload[offset:end])
		}
	}
	return out.String()
}

// fitWithin scales w x h to fit the box keeping the aspect ratio, never
// below 10px on either side.
func fitWithin(w int, h int, boxW int, boxH int) (int, int) {
	aspect := float64(w) / float64(h)
	if aspect > float64(boxW)/float64(boxH) {
		boxH = int(float64(boxW) / aspect)
	} else {
		boxW = int(float64(boxH) * aspect)
	}
	return max(boxW, 10), max(boxH, 10)
}
