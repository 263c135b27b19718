package pipeline

import (
	"context"
)

// Task is a handle on one stage invocation. It is finished exactly once, after the
// session has applied its outcome to State.
type Task struct {
	stage  Stage
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
	done   chan struct{}

	text string
	err  error
}

func newTask(stage Stage) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		stage:  stage,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func finishedTask(stage Stage, err error) *Task {
	t := newTask(stage)
	t.finish("", err)
	return t
}

// Stage returns the stage this task runs.
func (t *Task) Stage() Stage { return t.stage }

// Done is closed once the task's outcome has been applied.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task is finished or ctx is done.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.text, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel aborts the underlying call. The task still finishes, with the call's error.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) finish(text string, err error) {
	t.text, t.err = text, err
	if t.stop != nil {
		t.stop()
	}
	t.cancel()
	close(t.done)
}
