package internal

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

func TestEncodeFrameBase64MatchesWholePayload(t *testing.T) {
	// Sizes straddling the chunk boundary, including lengths that are not a
	// multiple of three so partial encoder state has to carry across chunks.
	sizes := []int{0, 1, 2, 3, 100, frameChunkSize - 1, frameChunkSize, frameChunkSize + 1, frameChunkSize*3 + 7}
	for _, size := range sizes {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 31)
		}
		want := base64.StdEncoding.EncodeToString(data)
		if got := encodeFrameBase64(data); got != want {
			t.Errorf("size %d: chunked encoding diverged from whole-payload encoding", size)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	decoded, err := decodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds: %v", decoded.Bounds())
	}

	if _, err := decodeFrame([]byte("not an image")); err == nil {
		t.Fatalf("expected decode failure for garbage payload")
	}
}

func TestRenderFrameANSI(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}

	out := renderFrameANSI(img, 8)
	if out == "" {
		t.Fatalf("expected non-empty rendering")
	}
	lines := strings.Split(out, "\n")
	// 16 source rows scaled to 8 columns then halved for cell aspect.
	if len(lines) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(lines))
	}
	if !strings.Contains(out, "▀") {
		t.Fatalf("expected half-block cells in output")
	}

	if renderFrameANSI(nil, 8) != "" {
		t.Fatalf("nil image should render empty")
	}
	if renderFrameANSI(img, 0) != "" {
		t.Fatalf("zero width should render empty")
	}
}
