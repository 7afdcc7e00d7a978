package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snap-solve/api/internal/camera"
	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
)

type fakeEngine struct {
	result  recognition.Result
	recErr  error
	unloads int
}

func (e *fakeEngine) Load(context.Context, recognition.Config) error { return nil }
func (e *fakeEngine) Recognize(context.Context, []byte) (recognition.Result, error) {
	return e.result, e.recErr
}
func (e *fakeEngine) Unload() error { e.unloads++; return nil }

type fakeCompleter struct{ content string }

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.content, nil
}

type fakeStream struct{}

func (fakeStream) Capabilities() camera.Capabilities { return camera.Capabilities{} }
func (fakeStream) ApplyTorch(bool) error             { return nil }
func (fakeStream) Release()                          {}

type fakeDevices struct{}

func (fakeDevices) AcquireStream(context.Context, camera.Constraints) (camera.Stream, error) {
	return fakeStream{}, nil
}

type fakeSurface struct{ frame image.Image }

func (s *fakeSurface) Bind(camera.Stream)              {}
func (s *fakeSurface) Clear()                          {}
func (s *fakeSurface) WaitReady(context.Context) error { return nil }
func (s *fakeSurface) Frame() image.Image              { return s.frame }

const answerJSON = `{"answer":"4","steps":[{"stepNumber":1,"title":"Add","explanation":"","calculation":"2 + 2","result":"4"}],"questionType":"math"}`

func newTestPipeline(eng *fakeEngine, st store.QuestionStore) *Pipeline {
	orch := solver.New(&fakeCompleter{content: answerJSON}, st)
	return New(func() recognition.Engine { return eng }, orch)
}

func TestProcessImageCarriesOCRConfidence(t *testing.T) {
	eng := &fakeEngine{result: recognition.Result{Text: "2 + 2 =", Confidence: 88}}
	st := store.NewMemStore()
	p := newTestPipeline(eng, st)

	var final recognition.Progress
	res, err := p.ProcessImage(context.Background(), []byte{0xFF, 0xD8}, "math", solver.Options{}, func(pr recognition.Progress) {
		final = pr
	})
	require.NoError(t, err)
	assert.Equal(t, "4", res.Answer.Answer)

	q, err := st.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 + 2 =", q.OriginalText)
	require.NotNil(t, q.Confidence)
	assert.Equal(t, 88, *q.Confidence)

	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, "complete", final.Status)

	// Per-submission worker is terminated afterwards.
	assert.Equal(t, 1, eng.unloads)
}

func TestProcessImageRecognitionFailure(t *testing.T) {
	eng := &fakeEngine{recErr: errors.New("blurry")}
	st := store.NewMemStore()
	p := newTestPipeline(eng, st)

	_, err := p.ProcessImage(context.Background(), nil, "math", solver.Options{}, nil)
	require.ErrorIs(t, err, recognition.ErrRecognitionFailed)

	all, _ := st.List(context.Background(), nil)
	assert.Empty(t, all)
}

func TestRunCapturesAndSolves(t *testing.T) {
	eng := &fakeEngine{result: recognition.Result{Text: "2 + 2 =", Confidence: 90}}
	st := store.NewMemStore()
	p := newTestPipeline(eng, st)

	sess := camera.NewSession(fakeDevices{})
	surf := &fakeSurface{frame: image.NewRGBA(image.Rect(0, 0, 8, 8))}

	res, err := p.Run(context.Background(), sess, surf, "math", solver.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "math", res.QuestionType)

	// Run stops the session when done.
	assert.Nil(t, sess.Snapshot())
}

func TestRunNoFrame(t *testing.T) {
	eng := &fakeEngine{result: recognition.Result{Text: "x", Confidence: 1}}
	p := newTestPipeline(eng, store.NewMemStore())

	sess := camera.NewSession(fakeDevices{})
	surf := &fakeSurface{frame: nil}

	_, err := p.Run(context.Background(), sess, surf, "general", solver.Options{}, nil)
	require.ErrorIs(t, err, ErrNoFrame)
}
