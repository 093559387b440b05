// Package imagemeta reads image dimensions from file headers.
package imagemeta

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	// Decoders registered with image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var extensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
	".tif":  {},
	".tiff": {},
}

// Dimensions is the pixel size of an image.
type Dimensions struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Supported reports whether name has an image extension with a registered decoder.
func Supported(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]

	return ok
}

// Read decodes only the header of r.
func Read(r io.Reader) (Dimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return Dimensions{}, fmt.Errorf("decoding image header: %w", err)
	}

	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
