// Package images decodes and encodes snapshots and performs the local pixel
// work around the external edit call: cropping, canvas padding for
// expansion, mask scaling and result size reconciliation.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("image has no pixels")

// NewSnapshot validates that data is a decodable image and wraps it.
func NewSnapshot(name string, data []byte) (*models.Snapshot, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("failed to decode image %q: %w", name, ErrEmptyImage)
	}
	return models.NewSnapshot(name, "image/"+format, cfg.Width, cfg.Height, data), nil
}

// Decode returns the pixels of s.
func Decode(s *models.Snapshot) (image.Image, error) {
	img, _, err := image.Decode(s.Reader())
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", s.Name(), err)
	}
	return img, nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SnapshotFromImage encodes img as PNG and wraps it. The name keeps its base
// but gets a .png extension.
func SnapshotFromImage(name string, img image.Image) (*models.Snapshot, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return models.NewSnapshot(PNGName(name), "image/png", b.Dx(), b.Dy(), data), nil
}

// PNGName swaps the extension of name for .png.
func PNGName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "image"
	}
	return base + ".png"
}

// Format returns the short format name ("png", "jpeg") of a snapshot.
func Format(s *models.Snapshot) string {
	return strings.TrimPrefix(s.MIMEType(), "image/")
}
