package recognition

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// State is a worker's position in its lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateBusy          State = "busy"
	StateTerminated    State = "terminated"
)

// Worker drives one Engine instance. Concurrent Recognize calls on the same
// worker are rejected rather than interleaved; callers wanting parallelism
// hold one worker per submission.
type Worker struct {
	engine Engine

	// initMu serializes Initialize so concurrent first calls load the
	// engine exactly once. Terminate never takes it and never blocks.
	initMu sync.Mutex

	mu    sync.Mutex
	state State
}

func NewWorker(engine Engine) *Worker {
	return &Worker{engine: engine, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Initialize loads the engine. Idempotent when already ready or busy.
// A terminated worker cannot come back.
func (w *Worker) Initialize(ctx context.Context) error {
	w.initMu.Lock()
	defer w.initMu.Unlock()

	w.mu.Lock()
	switch w.state {
	case StateReady, StateBusy:
		w.mu.Unlock()
		return nil
	case StateTerminated:
		w.mu.Unlock()
		return fmt.Errorf("%w: worker is terminated", ErrEngineInit)
	}
	w.mu.Unlock()

	if err := w.engine.Load(ctx, DefaultConfig()); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineInit, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateTerminated {
		// Terminated while loading; the engine was already unloaded or will
		// never be used again.
		return fmt.Errorf("%w: worker is terminated", ErrEngineInit)
	}
	w.state = StateReady
	return nil
}

// Recognize runs one recognition. It initializes lazily, reports progress to
// onProgress (final report is {1, "complete"} on success) and always returns
// the worker to ready unless a Terminate raced it.
func (w *Worker) Recognize(ctx context.Context, image []byte, onProgress ProgressFunc) (Result, error) {
	if err := w.Initialize(ctx); err != nil {
		return Result{}, err
	}

	w.mu.Lock()
	switch w.state {
	case StateBusy:
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: recognition already in progress", ErrRecognitionFailed)
	case StateTerminated:
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: worker is terminated", ErrRecognitionFailed)
	}
	w.state = StateBusy
	w.mu.Unlock()

	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	report(Progress{Status: "recognizing text", Progress: 0})

	res, err := w.engine.Recognize(ctx, image)

	// Back to ready no matter how the engine call went; only a Terminate that
	// landed mid-flight wins over that.
	w.mu.Lock()
	terminated := w.state == StateTerminated
	if !terminated {
		w.state = StateReady
	}
	w.mu.Unlock()

	if terminated {
		return Result{}, fmt.Errorf("%w: worker terminated mid-recognition", ErrRecognitionFailed)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Confidence < 0 {
		res.Confidence = 0
	} else if res.Confidence > 100 {
		res.Confidence = 100
	}

	report(Progress{Status: "complete", Progress: 1})
	return res, nil
}

// Terminate releases the engine and ends the lifecycle. Idempotent, safe to
// call mid-recognition, and never waits for an in-flight call to finish.
func (w *Worker) Terminate() {
	w.mu.Lock()
	if w.state == StateTerminated {
		w.mu.Unlock()
		return
	}
	w.state = StateTerminated
	w.mu.Unlock()

	_ = w.engine.Unload()
}
