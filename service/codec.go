package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/krau/konavision/config"
)

const jpegQuality = 95

// DecodeBytes decodes an encoded image (JPEG, PNG, GIF, BMP, TIFF, WebP or
// AVIF), applying its EXIF orientation. Images larger than the configured
// max_pixels are rejected before any pixel data is decoded.
func DecodeBytes(data []byte) (*Image, error) {
	return decodeBytes(data, config.C().MaxPixels)
}

func decodeBytes(data []byte, maxPixels int) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	head, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if head.Width <= 0 || head.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, head.Width, head.Height)
	}
	if int64(head.Width)*int64(head.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, head.Width, head.Height, maxPixels)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromImage(img), nil
}

// DecodeDataURL splits "<header>,<base64>" on the first comma and decodes the
// payload.
func DecodeDataURL(s string) (string, *Image, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL has no comma separator", ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return "", nil, err
	}
	return header, img, nil
}

// EncodeDataURL returns header + "," + base64 of the encoded image. The
// payload is PNG when header names image/png and JPEG otherwise.
func EncodeDataURL(header string, img *Image) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatFromHeader(header)); err != nil {
		return "", err
	}
	return header + "," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func FormatFromHeader(header string) imaging.Format {
	if strings.Contains(strings.ToLower(header), "image/png") {
		return imaging.PNG
	}
	return imaging.JPEG
}

func Encode(w io.Writer, img *Image, format imaging.Format) error {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return errors.New("cannot encode an empty image")
	}
	return imaging.Encode(w, img.NRGBA(), format, imaging.JPEGQuality(jpegQuality))
}
