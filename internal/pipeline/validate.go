package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	errTooSmall         = errors.New("image below minimum dimensions")
	errFormatNotAllowed = errors.New("image format not allowed")
)

// formatExtensions maps Go decoder format names to stored file extensions.
var formatExtensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

// validateImage decodes data, enforces the format allowlist and minimum
// dimensions, and returns the image normalized to a 3-channel representation
// plus its file extension.
func validateImage(data []byte, minWidth, minHeight int, allowedFormats []string) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	ext, ok := formatExtensions[format]
	if !ok || !formatAllowed(ext, allowedFormats) {
		return nil, "", fmt.Errorf("%w: %s", errFormatNotAllowed, format)
	}

	bounds := img.Bounds()
	if bounds.Dx() < minWidth || bounds.Dy() < minHeight {
		return nil, "", fmt.Errorf("%w: %dx%d", errTooSmall, bounds.Dx(), bounds.Dy())
	}

	return normalizeColor(img), ext, nil
}

// normalizeColor flattens palette, grayscale, and alpha variants onto an RGBA
// canvas so every downstream stage sees the same color model.
func normalizeColor(img image.Image) image.Image {
	if _, ok := img.(*image.RGBA); ok {
		return img
	}
	bounds := img.Bounds()
	normalized := image.NewRGBA(bounds)
	draw.Draw(normalized, bounds, img, bounds.Min, draw.Src)
	return normalized
}

func formatAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a == ext || (a == "jpeg" && ext == "jpg") {
			return true
		}
	}
	return false
}
