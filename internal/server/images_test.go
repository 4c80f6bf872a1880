package server

import (
	"bytes"
	"image"
	"strings"
	"testing"
)

func decodeNormalized(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode normalized image: %v", err)
	}
	if format != "png" {
		t.Fatalf("normalized format = %q, want png", format)
	}
	return img
}

func TestNormalizeDrawingDataURL(t *testing.T) {
	out, err := normalizeDrawing(testDrawingSized(t, 16, 12))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img := decodeNormalized(t, out)
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Fatalf("small image resized: %v", img.Bounds())
	}
}

func TestNormalizeDrawingBareBase64(t *testing.T) {
	dataURL := testDrawing(t)
	bare := strings.TrimPrefix(dataURL, "data:image/png;base64,")

	out, err := normalizeDrawing(bare)
	if err != nil {
		t.Fatalf("normalize bare base64: %v", err)
	}
	decodeNormalized(t, out)
}

func TestNormalizeDrawingScalesDown(t *testing.T) {
	out, err := normalizeDrawing(testDrawingSized(t, 1600, 400))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img := decodeNormalized(t, out)
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 200 {
		t.Fatalf("bounds = %v, want 800x200", img.Bounds())
	}
}

func TestNormalizeDrawingScalesDownTall(t *testing.T) {
	out, err := normalizeDrawing(testDrawingSized(t, 400, 1600))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img := decodeNormalized(t, out)
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 800 {
		t.Fatalf("bounds = %v, want 100x800", img.Bounds())
	}
}

func TestNormalizeDrawingRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!not-base64!!!"},
		{"base64 but not an image", "aGVsbG8gd29ybGQ="},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := normalizeDrawing(tc.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
