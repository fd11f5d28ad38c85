package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krau/konavision/tensor"
)

const DefaultTimeout = 30 * time.Second

// TaskConfig locates a task's model and label files. Labels, when set, is
// used instead of reading LabelPath.
type TaskConfig struct {
	ModelPath string
	LabelPath string
	Size      int
	Labels    LabelMap
}

// Adapter runs one task: preprocess, a pooled inference session, and
// postprocess. Setup must succeed before Infer; after that an Adapter is safe
// for concurrent use.
type Adapter struct {
	task     Task
	cfg      TaskConfig
	loader   Loader
	poolSize int
	timeout  time.Duration

	mu        sync.Mutex
	ready     atomic.Bool
	labels    LabelMap
	inputName string
	sessions  []Session
	modelPool chan Session
}

type Option func(*Adapter)

func WithPoolSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.poolSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAdapter(kind string, cfg TaskConfig, loader Loader, opts ...Option) (*Adapter, error) {
	k, err := ParseTaskKind(kind)
	if err != nil {
		return nil, err
	}
	task, err := NewTask(k, cfg.Size)
	if err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, errors.New("nil session loader")
	}
	a := &Adapter{
		task:     task,
		cfg:      cfg,
		loader:   loader,
		poolSize: 1,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Kind() TaskKind { return a.task.Kind() }
func (a *Adapter) Task() Task     { return a.task }
func (a *Adapter) Ready() bool    { return a.ready.Load() }

// Setup reads the label map and opens the session pool. Calls after the
// first success do nothing.
func (a *Adapter) Setup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready.Load() {
		return nil
	}

	labels := a.cfg.Labels
	if labels == nil {
		var err error
		if labels, err = ReadLabelMap(a.cfg.LabelPath); err != nil {
			return fmt.Errorf("%w: labels for %s: %w", ErrModelLoad, a.Kind(), err)
		}
	}

	sessions := make([]Session, 0, a.poolSize)
	closeAll := func() {
		for _, s := range sessions {
			s.Close()
		}
	}
	for range a.poolSize {
		if err := ctx.Err(); err != nil {
			closeAll()
			return err
		}
		s, err := a.loader(a.cfg.ModelPath)
		if err != nil {
			closeAll()
			return fmt.Errorf("%w: %s: %w", ErrModelLoad, a.cfg.ModelPath, err)
		}
		sessions = append(sessions, s)
		if err := a.validate(s); err != nil {
			closeAll()
			return err
		}
	}

	a.labels = labels
	a.inputName = sessions[0].InputNames()[0]
	a.sessions = sessions
	a.modelPool = make(chan Session, len(sessions))
	for _, s := range sessions {
		a.modelPool <- s
	}
	a.ready.Store(true)

	slog.Info("Model ready",
		slog.String("task", a.Kind().String()),
		slog.String("model", a.cfg.ModelPath),
		slog.String("input", a.inputName),
		slog.Int("sessions", len(sessions)),
		slog.Int("labels", len(labels)))
	return nil
}

func (a *Adapter) validate(s Session) error {
	if len(s.InputNames()) == 0 {
		return fmt.Errorf("%w: %s declares no inputs", ErrModelLoad, a.cfg.ModelPath)
	}
	if n := len(s.OutputNames()); n < a.task.minOutputs() {
		return fmt.Errorf("%w: %s declares %d outputs, %s needs %d",
			ErrModelLoad, a.cfg.ModelPath, n, a.Kind(), a.task.minOutputs())
	}
	return nil
}

type runResult struct {
	outs []*tensor.Tensor
	err  error
}

// Infer runs the task on img within the adapter's time budget.
func (a *Adapter) Infer(ctx context.Context, img *Image) (Result, error) {
	if !a.ready.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, a.Kind())
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	input, err := a.task.preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("%w: preprocess: %w", ErrInferenceEngine, err)
	}

	var m Session
	select {
	case m = <-a.modelPool:
	case <-ctx.Done():
		return nil, a.ctxErr(ctx)
	}

	done := make(chan runResult, 1)
	go func() {
		var r runResult
		// the session goes back only once the engine has released it
		defer func() {
			if p := recover(); p != nil {
				r = runResult{err: fmt.Errorf("panic: %v", p)}
			}
			a.modelPool <- m
			done <- r
		}()
		r.outs, r.err = m.Run(map[string]*tensor.Tensor{a.inputName: input})
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInferenceEngine, a.Kind(), r.err)
		}
		return a.task.postprocess(r.outs, a.labels, img)
	case <-ctx.Done():
		slog.Warn("Inference abandoned", slog.String("task", a.Kind().String()), slog.String("error", ctx.Err().Error()))
		return nil, a.ctxErr(ctx)
	}
}

func (a *Adapter) ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, a.Kind(), a.timeout)
	}
	return ctx.Err()
}

// Close waits for in-flight runs and releases every session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready.Swap(false) {
		return nil
	}
	var errs []error
	for range a.sessions {
		if err := (<-a.modelPool).Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.sessions = nil
	return errors.Join(errs...)
}
