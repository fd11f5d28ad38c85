package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/krau/konavision/tensor"
	ort "github.com/yalue/onnxruntime_go"
)

var errNoIO = errors.New("model declares no inputs or no outputs")

// Session is a loaded model graph bound to one .onnx file. Inputs and
// outputs are allocated per Run, so callers may feed any resolution the
// model accepts.
type Session struct {
	session *ort.DynamicAdvancedSession
	inputs  []ort.InputOutputInfo
	outputs []ort.InputOutputInfo
}

// Load validates the model at path and opens a session on it.
// intraOpThreads <= 0 keeps the runtime default.
func Load(path string, intraOpThreads int) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errNoIO
	}
	logMetadata(path)

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if intraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(intraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, names(inputs), names(outputs), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return &Session{session: session, inputs: inputs, outputs: outputs}, nil
}

func logMetadata(path string) {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		slog.Warn("Failed to read model metadata", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	defer meta.Destroy()
	producer, _ := meta.GetProducerName()
	graph, _ := meta.GetGraphName()
	version, _ := meta.GetVersion()
	slog.Debug("Model metadata",
		slog.String("path", path),
		slog.String("producer", producer),
		slog.String("graph", graph),
		slog.Int64("version", version))
}

func names(info []ort.InputOutputInfo) []string {
	out := make([]string, len(info))
	for i, v := range info {
		out[i] = v.Name
	}
	return out
}

func (s *Session) InputNames() []string  { return names(s.inputs) }
func (s *Session) OutputNames() []string { return names(s.outputs) }

// Run feeds inputs by name and returns every output in declaration order.
func (s *Session) Run(inputs map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	in := make([]ort.Value, len(s.inputs))
	defer destroyAll(in)
	for i, info := range s.inputs {
		t, ok := inputs[info.Name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", info.Name)
		}
		v, err := toValue(t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", info.Name, err)
		}
		in[i] = v
	}

	out := make([]ort.Value, len(s.outputs))
	defer destroyAll(out)
	if err := s.session.Run(in, out); err != nil {
		return nil, err
	}

	results := make([]*tensor.Tensor, len(out))
	for i, v := range out {
		t, err := fromValue(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", s.outputs[i].Name, err)
		}
		results[i] = t
	}
	return results, nil
}

func (s *Session) Close() error {
	return s.session.Destroy()
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

func toValue(t *tensor.Tensor) (ort.Value, error) {
	shape := ort.NewShape(t.Shape...)
	switch t.DType {
	case tensor.Float32:
		return ort.NewTensor(shape, t.F32)
	case tensor.Uint8:
		return ort.NewTensor(shape, t.U8)
	default:
		return nil, fmt.Errorf("unsupported dtype %s", t.DType)
	}
}

func fromValue(v ort.Value) (*tensor.Tensor, error) {
	switch v := v.(type) {
	case *ort.Tensor[float32]:
		return tensor.NewFloat32(slices.Clone([]int64(v.GetShape())), slices.Clone(v.GetData()))
	case *ort.Tensor[uint8]:
		return tensor.NewUint8(slices.Clone([]int64(v.GetShape())), slices.Clone(v.GetData()))
	case *ort.Tensor[float64]:
		return widen(v.GetShape(), v.GetData())
	case *ort.Tensor[int64]:
		return widen(v.GetShape(), v.GetData())
	case *ort.Tensor[int32]:
		return widen(v.GetShape(), v.GetData())
	case nil:
		return nil, errors.New("engine returned no value")
	default:
		return nil, fmt.Errorf("unsupported output type %T", v)
	}
}

func widen[T float64 | int64 | int32](shape ort.Shape, data []T) (*tensor.Tensor, error) {
	f := make([]float32, len(data))
	for i, x := range data {
		f[i] = float32(x)
	}
	return tensor.NewFloat32(slices.Clone([]int64(shape)), f)
}
