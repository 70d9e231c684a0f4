package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	// decoders for embedded images pdfcpu hands back as-is
	_ "golang.org/x/image/webp"
)

// Format is a target raster format for re-encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
)

// ParseFormat accepts user spellings such as "PNG", "jpeg" or "tif".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "bmp":
		return FormatBMP, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// Ext is the file extension used for archive entries.
func (f Format) Ext() string { return string(f) }

// Encoder re-encodes raw embedded image bytes.
type Encoder struct {
	JPEGQuality int
}

func NewEncoder(jpegQuality int) *Encoder {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = jpeg.DefaultQuality
	}
	return &Encoder{JPEGQuality: jpegQuality}
}

// Encode decodes data and writes it again in format.
func (e *Encoder) Encode(data []byte, format Format) ([]byte, error) {
	img, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		err = jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: e.JPEGQuality})
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	log.Debug().
		Str("from", srcFormat).
		Str("to", string(format)).
		Int("in_size", len(data)).
		Int("out_size", buf.Len()).
		Msg("re-encoded image")

	return buf.Bytes(), nil
}

// Thumbnail returns a PNG preview that fits inside a max x max box.
// Images already smaller than the box are not upscaled.
func Thumbnail(data []byte, max int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > max || h > max {
		if w >= h {
			h = h * max / w
			w = max
		} else {
			w = w * max / h
			h = max
		}
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten draws img onto an opaque white canvas; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// GetImageDimensions returns the pixel size of encoded image bytes without a full decode
func GetImageDimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
