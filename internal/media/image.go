package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupportedImage is returned when the file is not a decodable image.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// ImageInspector reads image headers to obtain pixel dimensions.
// Only the header is decoded, so large sources are cheap to inspect.
type ImageInspector struct{}

// NewImageInspector creates a new ImageInspector.
func NewImageInspector() *ImageInspector {
	return &ImageInspector{}
}

// ReadDimensions returns the width and height of the image at path.
func (ImageInspector) ReadDimensions(ctx context.Context, path string) (int, int, error) {
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is produced by the fetch step
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %s reports %dx%d", ErrUnsupportedImage, format, cfg.Width, cfg.Height)
	}

	return cfg.Width, cfg.Height, nil
}
