package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
)

const (
	maxDrawingBytes = 2 << 20
	maxImageEdge    = 800
)

// normalizeDrawing turns an uploaded data-URL (or bare base64) into the
// normalized PNG payload the aggregator stores: decoded, bounded to 800x800
// preserving aspect, re-encoded. The game core never sees raw upload bytes.
func normalizeDrawing(data string) ([]byte, error) {
	decoded, err := decodeImageData(data)
	if err != nil {
		return nil, err
	}
	return sanitizeImage(decoded)
}

func decodeImageData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, errors.New("no image data")
	}
	if parts := strings.SplitN(data, ",", 2); len(parts) == 2 && strings.HasPrefix(parts[0], "data:") {
		data = parts[1]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.New("image data is not valid base64")
	}
	if len(decoded) > maxDrawingBytes {
		return nil, errors.New("image too large")
	}
	return decoded, nil
}

func sanitizeImage(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.New("image data is not a decodable image")
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxImageEdge && height <= maxImageEdge {
		return encodePNG(src)
	}

	scale := float64(maxImageEdge) / float64(width)
	if height > width {
		scale = float64(maxImageEdge) / float64(height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(width)*scale), int(float64(height)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return encodePNG(dst)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, errors.New("failed to re-encode image")
	}
	return buf.Bytes(), nil
}
