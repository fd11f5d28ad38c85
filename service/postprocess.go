package service

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/krau/konavision/tensor"
	"gonum.org/v1/gonum/floats"
)

// Argmax returns the index of the largest score, the first one on ties.
func Argmax(scores []float32) int {
	f := make([]float64, len(scores))
	for i, v := range scores {
		f[i] = float64(v)
	}
	return floats.MaxIdx(f)
}

// ClassifyOutput labels the top-scoring class. No threshold is applied.
func ClassifyOutput(outs []*tensor.Tensor, labels LabelMap) (ClassifyResult, error) {
	if len(outs) == 0 || outs[0].Len() == 0 {
		return ClassifyResult{}, fmt.Errorf("%w: classifier returned no scores", ErrInferenceEngine)
	}
	text, err := labels.Lookup(Argmax(outs[0].Floats()))
	if err != nil {
		return ClassifyResult{}, err
	}
	return ClassifyResult{Label: ShortLabel(text)}, nil
}

// DetectOutput reports the first detection of a boxes/classes/scores/count
// output set, rescaling its normalised [y1,x1,y2,x2] box to a width×height
// image.
func DetectOutput(outs []*tensor.Tensor, labels LabelMap, width, height int) (DetectResult, error) {
	if len(outs) < 4 {
		return DetectResult{}, fmt.Errorf("%w: detector returned %d outputs, want 4", ErrInferenceEngine, len(outs))
	}
	count := outs[3].Floats()
	if len(count) == 0 {
		return DetectResult{}, fmt.Errorf("%w: empty detection count", ErrInferenceEngine)
	}
	if int(count[0]) <= 0 {
		return DetectResult{Label: NoDetections}, nil
	}

	boxes, classes := outs[0].Floats(), outs[1].Floats()
	if len(boxes) < 4 || len(classes) == 0 {
		return DetectResult{}, fmt.Errorf("%w: detection count %d but no boxes", ErrInferenceEngine, int(count[0]))
	}
	w, h := float64(width), float64(height)
	box := Box{
		X1: max(0, roundHalfUp(float64(boxes[1])*w)),
		Y1: max(0, roundHalfUp(float64(boxes[0])*h)),
		X2: min(width, roundHalfUp(float64(boxes[3])*w)),
		Y2: min(height, roundHalfUp(float64(boxes[2])*h)),
	}

	text, err := labels.Lookup(int(classes[0]))
	if err != nil {
		return DetectResult{}, err
	}
	return DetectResult{Label: Title(text), Box: box}, nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// SegmentOutput turns (1,C,H',W') class scores into a palette mask at
// width×height and the labels of the non-background classes present.
func SegmentOutput(outs []*tensor.Tensor, labels LabelMap, width, height int) (SegmentResult, error) {
	if len(outs) == 0 {
		return SegmentResult{}, fmt.Errorf("%w: segmenter returned no outputs", ErrInferenceEngine)
	}
	classMap, err := ArgmaxClasses(outs[0])
	if err != nil {
		return SegmentResult{}, err
	}

	var names []string
	for _, idx := range PresentClasses(classMap) {
		text, err := labels.Lookup(idx)
		if err != nil {
			return SegmentResult{}, err
		}
		names = append(names, Title(text))
	}

	mask := Colorize(ResizeClasses(classMap, width, height))
	return SegmentResult{Mask: mask, Labels: names}, nil
}

// ArgmaxClasses picks the best class per pixel of a (C,H,W) or (1,C,H,W)
// score tensor.
func ArgmaxClasses(t *tensor.Tensor) (ClassMap, error) {
	shape := t.Shape
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return ClassMap{}, fmt.Errorf("%w: segmentation output shape %v", ErrInferenceEngine, t.Shape)
	}
	classes, h, w := int(shape[0]), int(shape[1]), int(shape[2])
	if classes < 1 || classes > 256 {
		return ClassMap{}, fmt.Errorf("%w: %d segmentation classes", ErrInferenceEngine, classes)
	}

	scores := t.Floats()
	plane := h * w
	out := ClassMap{Width: w, Height: h, Index: make([]uint8, plane)}
	for p := range plane {
		best, bestScore := 0, scores[p]
		for c := 1; c < classes; c++ {
			if v := scores[c*plane+p]; v > bestScore {
				best, bestScore = c, v
			}
		}
		out.Index[p] = uint8(best)
	}
	return out, nil
}

// PresentClasses lists the distinct non-zero indices of m in first-seen
// order.
func PresentClasses(m ClassMap) []int {
	var seen [256]bool
	var out []int
	for _, idx := range m.Index {
		if idx == 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, int(idx))
	}
	return out
}

// ResizeClasses scales m to width×height with area averaging. Pixels on a
// class boundary may take an in-between index.
func ResizeClasses(m ClassMap, width, height int) ClassMap {
	if m.Width == width && m.Height == height {
		return m
	}
	gray := &image.Gray{Pix: m.Index, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
	resized := imaging.Resize(gray, width, height, imaging.Box)

	out := ClassMap{Width: width, Height: height, Index: make([]uint8, width*height)}
	for y := range height {
		row := resized.Pix[y*resized.Stride:]
		for x := range width {
			out.Index[y*width+x] = row[x*4]
		}
	}
	return out
}
