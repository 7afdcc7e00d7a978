// Package pipeline runs one submission end to end: capture a still from the
// camera session, recognize its text, solve it, persist the record. Each
// stage waits for its predecessor; independent submissions run concurrently
// because every Run gets its own worker instance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"snap-solve/api/internal/camera"
	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/solver"
)

// ErrNoFrame means the capture session produced no usable still; the caller
// should retake the photo.
var ErrNoFrame = errors.New("no frame captured")

type Pipeline struct {
	// NewEngine builds the OCR engine for one submission.
	NewEngine func() recognition.Engine
	Solver    *solver.Orchestrator
}

func New(newEngine func() recognition.Engine, s *solver.Orchestrator) *Pipeline {
	return &Pipeline{NewEngine: newEngine, Solver: s}
}

// ProcessImage recognizes a still image and solves the recognized question.
// The stored record carries the OCR confidence.
func (p *Pipeline) ProcessImage(ctx context.Context, image []byte, questionType string, opts solver.Options, onProgress recognition.ProgressFunc) (solver.SolveResult, error) {
	id := uuid.NewString()

	worker := recognition.NewWorker(p.NewEngine())
	defer worker.Terminate()

	rec, err := worker.Recognize(ctx, image, onProgress)
	if err != nil {
		return solver.SolveResult{}, err
	}
	log.Printf("[%s] recognized %d chars, confidence %.0f", id, len(rec.Text), rec.Confidence)

	if opts.Confidence == nil {
		c := int(rec.Confidence)
		opts.Confidence = &c
	}

	res, err := p.Solver.Solve(ctx, rec.Text, questionType, opts)
	if err != nil {
		return solver.SolveResult{}, err
	}
	log.Printf("[%s] stored question %d", id, res.ID)
	return res, nil
}

// Capture takes a still from an already running session. The session keeps
// running; callers own its lifecycle.
func (p *Pipeline) Capture(sess *camera.Session) ([]byte, error) {
	img := sess.Snapshot()
	if img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

// Run starts a session on surface, captures one still, stops the session and
// processes the still. Convenience for single-shot submissions.
func (p *Pipeline) Run(ctx context.Context, sess *camera.Session, surface camera.DisplaySurface, questionType string, opts solver.Options, onProgress recognition.ProgressFunc) (solver.SolveResult, error) {
	if err := sess.Start(ctx, surface, ""); err != nil {
		return solver.SolveResult{}, err
	}
	defer sess.Stop()

	img, err := p.Capture(sess)
	if err != nil {
		return solver.SolveResult{}, fmt.Errorf("capture: %w", err)
	}
	return p.ProcessImage(ctx, img, questionType, opts, onProgress)
}
