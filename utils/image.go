package utils

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// ImageExtensions lists the file extensions accepted by the CLI.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// IsValidExtension reports whether ext is one of the supported image extensions.
func IsValidExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// DecodeImage decodes an image file, applying the EXIF orientation if present.
func DecodeImage(src string) (image.Image, error) {
	ctype, err := DetectContentType(src)
	if err != nil {
		return nil, errors.Wrap(err, "could not open the image file")
	}
	if !strings.Contains(ctype, "image") {
		return nil, errors.Errorf("%s is not an image file", src)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode the image file")
	}
	return img, nil
}

// DecodeReader decodes an image from r.
func DecodeReader(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode the image")
	}
	return img, nil
}

// EncodeImage encodes img to w. Files are encoded after their extension,
// any other writer receives a JPEG.
func EncodeImage(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	switch w := w.(type) {
	case *os.File:
		switch ext := strings.ToLower(filepath.Ext(w.Name())); ext {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		case ".png":
			return png.Encode(w, img)
		case ".bmp":
			return bmp.Encode(w, img)
		default:
			return errors.New("unsupported image format")
		}
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
}
