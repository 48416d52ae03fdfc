package products

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds the full data URL, header included.
const MaxImageBytes = 5_000_000

var (
	ErrImageNotDataURL = errors.New("image must be a data URL")
	ErrImageTooLarge   = fmt.Errorf("image must be at most %d bytes", MaxImageBytes)
	ErrImageEncoding   = errors.New("image must be base64 encoded")
	ErrImageNotImage   = errors.New("image content is not an image")
)

// ValidateImage checks a data URL image and returns the sniffed mime type.
// The declared media type is ignored; only the decoded bytes count.
func ValidateImage(dataURL string) (string, error) {
	if len(dataURL) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(dataURL), "data:") {
		return "", ErrImageNotDataURL
	}
	header, payload, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok {
		return "", ErrImageNotDataURL
	}
	if !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return "", ErrImageEncoding
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
		if err != nil {
			return "", ErrImageEncoding
		}
	}
	if len(raw) == 0 {
		return "", ErrImageNotImage
	}

	detected := mimetype.Detect(raw)
	for mt := detected; mt != nil; mt = mt.Parent() {
		if strings.HasPrefix(mt.String(), "image/") {
			return detected.String(), nil
		}
	}
	return "", ErrImageNotImage
}
