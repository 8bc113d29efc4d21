package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartRunsStagesInOrder(t *testing.T) {
	r := New(quietLogger())
	var order, seen []string
	r.OnStage(func(name string) { seen = append(seen, name) })
	r.AddStage("load", func(context.Context) error { order = append(order, "load"); return nil })
	r.AddStage("write", func(context.Context) error { order = append(order, "write"); return nil })

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, []string{"load", "write"}, order)
	assert.Equal(t, order, seen)
	assert.Equal(t, 2, r.Len())
}

func TestStartStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	r := New(quietLogger())
	ran := false
	r.AddStage("load", func(context.Context) error { return boom })
	r.AddStage("write", func(context.Context) error { ran = true; return nil })

	err := r.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "load stage: boom")
	assert.False(t, ran)
}

func TestStartHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(quietLogger())
	r.AddStage("load", func(context.Context) error { t.Fatal("stage must not run"); return nil })
	assert.ErrorIs(t, r.Start(ctx), context.Canceled)
}
