package service

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/krau/konavision/tensor"
)

// fakeSession returns canned outputs and records what it was fed.
type fakeSession struct {
	inputs  []string
	outputs []string
	result  []*tensor.Tensor
	err     error
	block   chan struct{}

	mu     sync.Mutex
	fed    []map[string]*tensor.Tensor
	closed bool
}

func (f *fakeSession) InputNames() []string  { return f.inputs }
func (f *fakeSession) OutputNames() []string { return f.outputs }

func (f *fakeSession) Run(in map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.fed = append(f.fed, in)
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) calls() []map[string]*tensor.Tensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

func loaderFor(s Session) Loader {
	return func(string) (Session, error) { return s, nil }
}

func failingLoader(err error) Loader {
	return func(string) (Session, error) { return nil, err }
}

var errEngine = errors.New("engine exploded")

func solid(w, h int, c color.NRGBA) *Image {
	return FromImage(imaging.New(w, h, c))
}

func gradient(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func f32(shape []int64, data ...float32) *tensor.Tensor {
	t, err := tensor.NewFloat32(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}
