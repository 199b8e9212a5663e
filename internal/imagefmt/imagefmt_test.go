package imagefmt

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func sample() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func encode(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := enc(&buf, sample()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
		ext  string
	}{
		{"png", encode(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }), "image/png", ".png"},
		{"jpeg", encode(t, func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) }), "image/jpeg", ".jpg"},
		{"gif", encode(t, func(b *bytes.Buffer, i image.Image) error { return gif.Encode(b, i, nil) }), "image/gif", ".gif"},
		{"bmp", encode(t, func(b *bytes.Buffer, i image.Image) error { return bmp.Encode(b, i) }), "image/bmp", ".bmp"},
		{"tiff", encode(t, func(b *bytes.Buffer, i image.Image) error { return tiff.Encode(b, i, nil) }), "image/tiff", ".tiff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Detect(tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.MIME != tt.mime || f.Ext != tt.ext {
				t.Errorf("got %s %s, want %s %s", f.MIME, f.Ext, tt.mime, tt.ext)
			}
			if f.Width != 6 || f.Height != 4 {
				t.Errorf("expected 6x4, got %dx%d", f.Width, f.Height)
			}
		})
	}
}

func TestDetect_Unsupported(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image at all"), {0xFF, 0xD8}} {
		_, err := Detect(data)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat for %q, got %v", data, err)
		}
	}
	if got := MIMEType([]byte("text")); got != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", got)
	}
}

func TestByExtension(t *testing.T) {
	tests := map[string]string{"jpg": "jpeg", ".jpeg": "jpeg", ".PNG": "png", ".txt": "", "webp": "webp", ".tif": "tiff"}
	for ext, want := range tests {
		f, ok := ByExtension(ext)
		if want == "" {
			if ok {
				t.Errorf("expected no match for %q", ext)
			}
			continue
		}
		if !ok || f.Name != want {
			t.Errorf("ByExtension(%q) = %v %v, want %s", ext, f.Name, ok, want)
		}
	}
}
