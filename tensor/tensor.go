// Package tensor holds the engine-neutral values passed between the
// preprocessing pipeline and an inference session.
package tensor

import "fmt"

type DType int

const (
	Float32 DType = iota
	Uint8
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Tensor is a dense row-major tensor. Exactly one of F32 and U8 is set,
// matching DType.
type Tensor struct {
	Shape []int64
	DType DType
	F32   []float32
	U8    []uint8
}

func NewFloat32(shape []int64, data []float32) (*Tensor, error) {
	if n := Elements(shape); n != int64(len(data)) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, DType: Float32, F32: data}, nil
}

func NewUint8(shape []int64, data []uint8) (*Tensor, error) {
	if n := Elements(shape); n != int64(len(data)) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, DType: Uint8, U8: data}, nil
}

// Elements is the product of the dimensions of shape.
func Elements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t *Tensor) Len() int {
	if t.DType == Uint8 {
		return len(t.U8)
	}
	return len(t.F32)
}

// Floats returns the data as float32, converting uint8 tensors.
func (t *Tensor) Floats() []float32 {
	if t.DType == Float32 {
		return t.F32
	}
	out := make([]float32, len(t.U8))
	for i, v := range t.U8 {
		out[i] = float32(v)
	}
	return out
}
