package service

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/krau/konavision/tensor"
)

const (
	ClassifySize = 768
	SegmentSize  = 520

	NoDetections = "No Detections"
)

var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

type TaskKind int

const (
	Classify TaskKind = iota
	Detect
	Segment
)

var TaskKinds = []TaskKind{Classify, Detect, Segment}

func (k TaskKind) String() string {
	switch k {
	case Classify:
		return "classify"
	case Detect:
		return "detect"
	case Segment:
		return "segment"
	default:
		return fmt.Sprintf("task(%d)", int(k))
	}
}

// ParseTaskKind matches s case-insensitively against the known task names.
func ParseTaskKind(s string) (TaskKind, error) {
	for _, k := range TaskKinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTask, s)
}

// Image is a packed 8-bit RGB pixel array, row-major with stride 3*Width.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]uint8, 3*width*height)}
}

// FromImage copies src into RGB order. Alpha is dropped, not composited.
func FromImage(src image.Image) *Image {
	n := imaging.Clone(src)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := NewImage(w, h)
	for y := range h {
		row := n.Pix[y*n.Stride:]
		for x := range w {
			copy(out.Pix[(y*w+x)*3:], row[x*4:x*4+3])
		}
	}
	return out
}

func (m *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

func (m *Image) NRGBA() *image.NRGBA {
	n := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		n.Pix[j] = m.Pix[i]
		n.Pix[j+1] = m.Pix[i+1]
		n.Pix[j+2] = m.Pix[i+2]
		n.Pix[j+3] = 0xff
	}
	return n
}

// ClassMap holds one class index per pixel.
type ClassMap struct {
	Width  int
	Height int
	Index  []uint8
}

type Box struct {
	X1, Y1, X2, Y2 int
}

type Result interface {
	Kind() TaskKind
}

type ClassifyResult struct {
	Label string `json:"label"`
}

type DetectResult struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

type SegmentResult struct {
	Mask   *Image   `json:"-"`
	Labels []string `json:"labels"`
}

func (ClassifyResult) Kind() TaskKind { return Classify }
func (DetectResult) Kind() TaskKind   { return Detect }
func (SegmentResult) Kind() TaskKind  { return Segment }

// Session is a loaded model ready to run. Implementations need not be safe
// for concurrent use; Adapter hands each session to one caller at a time.
type Session interface {
	InputNames() []string
	OutputNames() []string
	Run(inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error)
	Close() error
}

// Loader opens a validated Session on the model file at path.
type Loader func(path string) (Session, error)
