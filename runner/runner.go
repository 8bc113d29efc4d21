package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type StageFunc func(context.Context) error

type stage struct {
	name string
	fn   StageFunc
}

// Runner executes stages in registration order. The first failing stage
// stops the run.
type Runner struct {
	logger  *slog.Logger
	stages  []stage
	onStage func(name string)
}

func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.stages = append(r.stages, stage{name: name, fn: fn})
}

// Len reports the number of registered stages.
func (r *Runner) Len() int {
	return len(r.stages)
}

// OnStage registers a callback invoked before each stage runs.
func (r *Runner) OnStage(fn func(name string)) {
	r.onStage = fn
}

func (r *Runner) Start(ctx context.Context) error {
	since := time.Now()

	for _, s := range r.stages {
		if err := ctx.Err(); err != nil {
			r.logger.Error("pipeline failed", "duration", time.Since(since), "err", err)
			return err
		}
		if r.onStage != nil {
			r.onStage(s.name)
		}

		started := time.Now()
		r.logger.Debug("stage started", "stage", s.name)
		if err := s.fn(ctx); err != nil {
			err = fmt.Errorf("%s stage: %w", s.name, err)
			r.logger.Error("pipeline failed", "duration", time.Since(since), "err", err)
			return err
		}
		r.logger.Debug("stage completed", "stage", s.name, "duration", time.Since(started))
	}

	r.logger.Info("pipeline completed", "duration", time.Since(since))
	return nil
}
