// Package imagefmt sniffs the container format of uploaded images. It reads headers only;
// pixels are never decoded.
package imagefmt

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for empty input or data no registered format recognizes.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format describes a recognized image container.
type Format struct {
	Name   string // registered image format name, e.g. "jpeg"
	MIME   string
	Ext    string // file extension including the dot
	Width  int
	Height int
}

var formats = map[string]Format{
	"jpeg": {Name: "jpeg", MIME: "image/jpeg", Ext: ".jpg"},
	"png":  {Name: "png", MIME: "image/png", Ext: ".png"},
	"gif":  {Name: "gif", MIME: "image/gif", Ext: ".gif"},
	"webp": {Name: "webp", MIME: "image/webp", Ext: ".webp"},
	"bmp":  {Name: "bmp", MIME: "image/bmp", Ext: ".bmp"},
	"tiff": {Name: "tiff", MIME: "image/tiff", Ext: ".tiff"},
}

// Detect identifies the format of data from its header and reports the image dimensions.
func Detect(data []byte) (Format, error) {
	if len(data) == 0 {
		return Format{}, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	f.Width = cfg.Width
	f.Height = cfg.Height
	return f, nil
}

// MIMEType returns the MIME type of data, or application/octet-stream if unrecognized.
func MIMEType(data []byte) string {
	f, err := Detect(data)
	if err != nil {
		return "application/octet-stream"
	}
	return f.MIME
}

// ByExtension returns the format whose extension matches ext, case-insensitively, with or
// without the dot.
func ByExtension(ext string) (Format, bool) {
	if ext == "" {
		return Format{}, false
	}
	ext = strings.ToLower(ext)
	if ext[0] != '.' {
		ext = "." + ext
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext == ".tif" {
		ext = ".tiff"
	}
	for _, f := range formats {
		if f.Ext == ext {
			return f, true
		}
	}
	return Format{}, false
}
