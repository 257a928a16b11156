package internal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// frameChunkSize bounds how much of a frame we feed the encoder at once, so a
// multi-megabyte image never turns into one giant argument. The output is
// byte-identical to encoding the whole payload in a single call.
const frameChunkSize = 16 * 1024

// encodeFrameBase64 produces the inline-image representation of a frame
// (standard base64, no data: prefix) by streaming the payload through the
// encoder in fixed chunks.
func encodeFrameBase64(data []byte) string {
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(data)))
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	for off := 0; off < len(data); off += frameChunkSize {
		end := off + frameChunkSize
		if end > len(data) {
			end = len(data)
		}
		_, _ = enc.Write(data[off:end])
	}
	_ = enc.Close()
	return sb.String()
}

// decodeFrame parses the compressed still image pushed for a room.
func decodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// renderFrameANSI rasterizes a frame into terminal cells. Each "▀" cell
// carries two image rows: the upper pixel as foreground, the lower as
// background, sampled from the source so the image fits the requested cell
// width.
func renderFrameANSI(img image.Image, cellWidth int) string {
	if img == nil || cellWidth <= 0 {
		return ""
	}
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return ""
	}
	if cellWidth > srcW {
		cellWidth = srcW
	}
	// Terminal cells are about twice as tall as wide; halving the row count
	// on top of the two-pixels-per-cell packing keeps the aspect ratio.
	cellHeight := srcH * cellWidth / srcW / 2
	if cellHeight < 1 {
		cellHeight = 1
	}

	var sb strings.Builder
	for cy := 0; cy < cellHeight; cy++ {
		for cx := 0; cx < cellWidth; cx++ {
			topY := bounds.Min.Y + (cy*2)*srcH/(cellHeight*2)
			botY := bounds.Min.Y + (cy*2+1)*srcH/(cellHeight*2)
			x := bounds.Min.X + cx*srcW/cellWidth
			top := hexColor(img.At(x, topY))
			bot := hexColor(img.At(x, botY))
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bot))
			sb.WriteString(style.Render("▀"))
		}
		if cy < cellHeight-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
