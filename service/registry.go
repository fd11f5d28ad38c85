package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/krau/konavision/config"
)

// Registry holds one Adapter per task kind, built once from configuration
// and shared read-only by every request.
type Registry struct {
	adapters map[TaskKind]*Adapter
}

func NewRegistry(c config.Config, loader Loader) (*Registry, error) {
	tasks := map[TaskKind]config.TaskConfig{
		Classify: c.Classify,
		Detect:   c.Detect,
		Segment:  c.Segment,
	}
	r := &Registry{adapters: make(map[TaskKind]*Adapter, len(tasks))}
	for kind, t := range tasks {
		a, err := NewAdapter(kind.String(), TaskConfig{
			ModelPath: t.Model,
			LabelPath: t.Labels,
			Size:      t.Size,
		}, loader,
			WithPoolSize(c.PoolSize),
			WithTimeout(time.Duration(c.InferTimeoutMs)*time.Millisecond))
		if err != nil {
			return nil, err
		}
		r.adapters[kind] = a
	}
	return r, nil
}

// Setup initialises every adapter. A task that fails stays unavailable and
// its error is included in the joined result.
func (r *Registry) Setup(ctx context.Context) error {
	var errs []error
	for _, kind := range TaskKinds {
		if err := r.adapters[kind].Setup(ctx); err != nil {
			slog.Error("Failed to set up model", slog.String("task", kind.String()), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Adapter(kind TaskKind) *Adapter {
	return r.adapters[kind]
}

func (r *Registry) Infer(ctx context.Context, kind TaskKind, img *Image) (Result, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, ErrUnknownTask
	}
	return a.Infer(ctx, img)
}

// Status reports which tasks are ready to serve.
func (r *Registry) Status() map[string]bool {
	out := make(map[string]bool, len(r.adapters))
	for kind, a := range r.adapters {
		out[kind.String()] = a.Ready()
	}
	return out
}

func (r *Registry) Close() error {
	var errs []error
	for _, a := range r.adapters {
		errs = append(errs, a.Close())
	}
	return errors.Join(errs...)
}
