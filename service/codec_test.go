package service

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRaw(t *testing.T, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, gradient(64, 40), format))
	return buf.Bytes()
}

func TestDecodeBytesKeepsDimensions(t *testing.T) {
	for _, format := range []imaging.Format{imaging.JPEG, imaging.PNG, imaging.GIF, imaging.BMP} {
		t.Run(format.String(), func(t *testing.T) {
			img, err := DecodeBytes(encodeRaw(t, format))
			require.NoError(t, err)
			assert.Equal(t, 64, img.Width)
			assert.Equal(t, 40, img.Height)
			assert.Len(t, img.Pix, 64*40*3)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img, imaging.JPEG))
			again, err := DecodeBytes(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, img.Width, again.Width)
			assert.Equal(t, img.Height, again.Height)
		})
	}
}

func TestDecodeBytesIsRGB(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(4, 4, color.NRGBA{R: 200, G: 10, B: 30, A: 255}), imaging.PNG))

	img, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	r, g, b := img.RGB(2, 3)
	assert.Equal(t, [3]uint8{200, 10, 30}, [3]uint8{r, g, b})
}

func TestDecodeBytesRejectsGarbage(t *testing.T) {
	_, err := DecodeBytes([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeBytes(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

// pngHeader returns a PNG holding only a signature and an IHDR chunk for an
// 8-bit grayscale image of the given size.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 0, 17)
	ihdr = append(ihdr, "IHDR"...)
	ihdr = binary.BigEndian.AppendUint32(ihdr, width)
	ihdr = binary.BigEndian.AppendUint32(ihdr, height)
	ihdr = append(ihdr, 8, 0, 0, 0, 0)

	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, 13)
	out = append(out, ihdr...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(ihdr))
}

func TestDecodeBytesRejectsHugeDimensions(t *testing.T) {
	_, err := DecodeBytes(pngHeader(100000, 100000))
	require.ErrorIs(t, err, ErrDecode)
	assert.ErrorContains(t, err, "pixel limit")
}

func TestDecodeBytesPixelLimit(t *testing.T) {
	data := encodeRaw(t, imaging.PNG)

	_, err := decodeBytes(data, 64*40-1)
	assert.ErrorIs(t, err, ErrDecode)

	img, err := decodeBytes(data, 64*40)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Width)
}

func TestDataURLRoundTrip(t *testing.T) {
	src := FromImage(gradient(33, 17))
	for _, header := range []string{"data:image/jpeg;base64", "data:image/png;base64"} {
		url, err := EncodeDataURL(header, src)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(url, header+","))

		gotHeader, img, err := DecodeDataURL(url)
		require.NoError(t, err)
		assert.Equal(t, header, gotHeader)
		assert.Equal(t, src.Width, img.Width)
		assert.Equal(t, src.Height, img.Height)
	}
}

func TestEncodeDataURLMatchesHeader(t *testing.T) {
	img := solid(8, 8, color.NRGBA{R: 128, A: 255})

	png, err := EncodeDataURL("data:image/png;base64", img)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.SplitN(png, ",", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), raw[:4])

	jpg, err := EncodeDataURL("data:image/jpeg;base64", img)
	require.NoError(t, err)
	raw, err = base64.StdEncoding.DecodeString(strings.SplitN(jpg, ",", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, raw[:2])
}

func TestPNGDataURLIsLossless(t *testing.T) {
	mask := Colorize(ClassMap{Width: 2, Height: 1, Index: []uint8{3, 15}})
	url, err := EncodeDataURL("data:image/png;base64", mask)
	require.NoError(t, err)

	_, img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, mask.Pix, img.Pix)
}

func TestDecodeDataURLErrors(t *testing.T) {
	_, _, err := DecodeDataURL("no separator here")
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeDataURL("data:image/png;base64,@@not-base64@@")
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("text")))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestEncodeRejectsEmpty(t *testing.T) {
	_, err := EncodeDataURL("data:image/png;base64", &Image{})
	assert.Error(t, err)
}
