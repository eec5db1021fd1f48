package assets

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
)

// Encoder writes img in one format. quality is 0-100 and ignored by lossless formats.
type Encoder interface {
	Encode(w io.Writer, img image.Image, quality int) error
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(w io.Writer, img image.Image, quality int) error

func (f EncoderFunc) Encode(w io.Writer, img image.Image, quality int) error { return f(w, img, quality) }

func defaultEncoders() map[string]Encoder {
	return map[string]Encoder{
		"jpeg": EncoderFunc(func(w io.Writer, img image.Image, q int) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
		}),
		"png": EncoderFunc(func(w io.Writer, img image.Image, _ int) error {
			enc := png.Encoder{CompressionLevel: png.BestCompression}
			return enc.Encode(w, img)
		}),
		"gif": EncoderFunc(func(w io.Writer, img image.Image, _ int) error {
			return gif.Encode(w, img, nil)
		}),
		"webp": EncoderFunc(func(w io.Writer, img image.Image, q int) error {
			return webp.Encode(w, img, webp.Options{Quality: q, Method: 4})
		}),
		"avif": EncoderFunc(func(w io.Writer, img image.Image, q int) error {
			return avif.Encode(w, img, avif.Options{Quality: q, QualityAlpha: q, Speed: 8})
		}),
	}
}

// imageFormats maps accepted source extensions to their encoder name. Decoders for
// all of them are registered with image.Decode by the imports above.
var imageFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".gif":  "gif",
	".webp": "webp",
}

func formatForExt(ext string) (string, bool) {
	f, ok := imageFormats[strings.ToLower(ext)]
	return f, ok
}
