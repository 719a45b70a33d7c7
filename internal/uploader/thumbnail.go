package uploader

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"

	"github.com/clipworks/evclip/internal/errors"
)

const (
	DefaultThumbnailDim     = 200
	DefaultThumbnailQuality = 70
)

// Thumbnail decodes a base64 screenshot (with or without a data-URI
// prefix), downscales it so its longer edge is at most maxDim, and
// re-encodes it as base64 JPEG. Images already within bounds are still
// re-encoded so the queue holds a uniformly small preview.
func Thumbnail(imageData string, maxDim, quality int) (string, error) {
	raw, err := decodeBase64Image(imageData)
	if err != nil {
		return "", err
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", errors.NewInvalidRequest("screenshot is not a decodable image")
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tw, th := fitWithin(w, h, maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return "", errors.NewInternal(fmt.Errorf("encode thumbnail: %w", err))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeBase64Image strips an optional "data:image/...;base64," prefix and
// decodes the payload.
func decodeBase64Image(data string) ([]byte, error) {
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.NewInvalidRequest("screenshot is not valid base64")
	}
	return raw, nil
}

// fitWithin scales (w, h) to fit inside a maxDim square, preserving aspect
// ratio and never upscaling.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		scaled := h * maxDim / w
		if scaled < 1 {
			scaled = 1
		}
		return maxDim, scaled
	}
	scaled := w * maxDim / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxDim
}
