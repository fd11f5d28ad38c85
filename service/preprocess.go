package service

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/krau/konavision/tensor"
)

// Normalize resizes img to size×size with area averaging and returns a
// (1,3,size,size) float32 tensor scaled to [0,1] and standardised per
// channel with ImageNetMean and ImageNetStd.
func Normalize(img *Image, size int) (*tensor.Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid working size %d", size)
	}
	// The resize runs on 8-bit data before the /255 scaling, so resized
	// values are quantized to steps of 1/255. An image already at size
	// passes through unchanged.
	resized := imaging.Resize(img.NRGBA(), size, size, imaging.Box)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := range size {
		row := resized.Pix[y*resized.Stride:]
		for x := range size {
			p := y*size + x
			for c := range 3 {
				v := float32(row[x*4+c]) / 255
				out[c*plane+p] = (v - ImageNetMean[c]) / ImageNetStd[c]
			}
		}
	}
	return tensor.NewFloat32([]int64{1, 3, int64(size), int64(size)}, out)
}

// Batch returns img at native resolution as a (1,H,W,3) uint8 tensor.
func Batch(img *Image) (*tensor.Tensor, error) {
	return tensor.NewUint8([]int64{1, int64(img.Height), int64(img.Width), 3}, img.Pix)
}
