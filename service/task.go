package service

import (
	"github.com/krau/konavision/tensor"
)

// Task is the closed set of model pipelines: ClassifyTask, DetectTask and
// SegmentTask.
type Task interface {
	Kind() TaskKind
	// minOutputs is how many outputs the model must declare.
	minOutputs() int
	preprocess(img *Image) (*tensor.Tensor, error)
	postprocess(outs []*tensor.Tensor, labels LabelMap, img *Image) (Result, error)
}

type ClassifyTask struct {
	Size int
}

type DetectTask struct{}

type SegmentTask struct {
	Size int
}

// NewTask builds the variant for kind. size 0 selects the default working
// resolution; the detector always runs at native resolution.
func NewTask(kind TaskKind, size int) (Task, error) {
	switch kind {
	case Classify:
		if size == 0 {
			size = ClassifySize
		}
		return ClassifyTask{Size: size}, nil
	case Detect:
		return DetectTask{}, nil
	case Segment:
		if size == 0 {
			size = SegmentSize
		}
		return SegmentTask{Size: size}, nil
	default:
		return nil, ErrUnknownTask
	}
}

func (ClassifyTask) Kind() TaskKind { return Classify }
func (ClassifyTask) minOutputs() int { return 1 }

func (t ClassifyTask) preprocess(img *Image) (*tensor.Tensor, error) {
	return Normalize(img, t.Size)
}

func (ClassifyTask) postprocess(outs []*tensor.Tensor, labels LabelMap, _ *Image) (Result, error) {
	return ClassifyOutput(outs, labels)
}

func (DetectTask) Kind() TaskKind { return Detect }
func (DetectTask) minOutputs() int { return 4 }

func (DetectTask) preprocess(img *Image) (*tensor.Tensor, error) {
	return Batch(img)
}

func (DetectTask) postprocess(outs []*tensor.Tensor, labels LabelMap, img *Image) (Result, error) {
	return DetectOutput(outs, labels, img.Width, img.Height)
}

func (SegmentTask) Kind() TaskKind { return Segment }
func (SegmentTask) minOutputs() int { return 1 }

func (t SegmentTask) preprocess(img *Image) (*tensor.Tensor, error) {
	return Normalize(img, t.Size)
}

func (SegmentTask) postprocess(outs []*tensor.Tensor, labels LabelMap, img *Image) (Result, error) {
	return SegmentOutput(outs, labels, img.Width, img.Height)
}
