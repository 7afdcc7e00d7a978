package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snap-solve/api/internal/pipeline"
	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
)

type fakeCompleter struct {
	content string
	err     error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.content, f.err
}

type fakeEngine struct{ result recognition.Result }

func (e *fakeEngine) Load(context.Context, recognition.Config) error { return nil }
func (e *fakeEngine) Recognize(context.Context, []byte) (recognition.Result, error) {
	return e.result, nil
}
func (e *fakeEngine) Unload() error { return nil }

const mathAnswer = `{"answer":"4","steps":[{"stepNumber":1,"title":"Add","explanation":"Add both","calculation":"2 + 2","result":"4"}],"questionType":"math"}`

func newTestServer(t *testing.T, llm solver.ChatCompleter, st store.QuestionStore, eng recognition.Engine) *httptest.Server {
	t.Helper()
	orch := solver.New(llm, st)
	pipe := pipeline.New(func() recognition.Engine { return eng }, orch)
	srv := httptest.NewServer(NewMux(New(pipe, orch, st)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProcessQuestion(t *testing.T) {
	st := store.NewMemStore()
	srv := newTestServer(t, &fakeCompleter{content: mathAnswer}, st, &fakeEngine{})

	resp := doJSON(t, "POST", srv.URL+"/api/questions/process",
		map[string]string{"text": "2 + 2 =", "questionType": "math"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[solver.SolveResult](t, resp)
	assert.Equal(t, "4", out.Answer.Answer)
	assert.Equal(t, "math", out.QuestionType)
	require.Len(t, out.Steps, 1)

	q, err := st.Get(context.Background(), out.ID)
	require.NoError(t, err)
	assert.False(t, q.IsSaved)
}

func TestProcessRequiresText(t *testing.T) {
	srv := newTestServer(t, &fakeCompleter{content: mathAnswer}, store.NewMemStore(), &fakeEngine{})

	resp := doJSON(t, "POST", srv.URL+"/api/questions/process", map[string]string{"questionType": "math"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessSolveFailure(t *testing.T) {
	st := store.NewMemStore()
	srv := newTestServer(t, &fakeCompleter{content: "not json at all"}, st, &fakeEngine{})

	resp := doJSON(t, "POST", srv.URL+"/api/questions/process", map[string]string{"text": "2+2"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	all, _ := st.List(context.Background(), nil)
	assert.Empty(t, all)
}

func TestRecognizeEndToEnd(t *testing.T) {
	st := store.NewMemStore()
	eng := &fakeEngine{result: recognition.Result{Text: "2 + 2 =", Confidence: 81}}
	srv := newTestServer(t, &fakeCompleter{content: mathAnswer}, st, eng)

	img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0x01})
	resp := doJSON(t, "POST", srv.URL+"/api/questions/recognize",
		map[string]string{"image_b64": img, "questionType": "math"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[solver.SolveResult](t, resp)
	q, err := st.Get(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 + 2 =", q.OriginalText)
	require.NotNil(t, q.Confidence)
	assert.Equal(t, 81, *q.Confidence)
}

func TestRecognizeRejectsBadImage(t *testing.T) {
	srv := newTestServer(t, &fakeCompleter{content: mathAnswer}, store.NewMemStore(), &fakeEngine{})

	resp := doJSON(t, "POST", srv.URL+"/api/questions/recognize", map[string]string{"image_b64": "%%%"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func seedQuestions(t *testing.T, st *store.MemStore, n int) []store.Question {
	t.Helper()
	out := make([]store.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := st.Create(context.Background(), store.InsertQuestion{
			OriginalText: "q", QuestionType: "general", Answer: "a",
		})
		require.NoError(t, err)
		out = append(out, q)
		time.Sleep(time.Millisecond) // distinct createdAt
	}
	return out
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	st := store.NewMemStore()
	qs := seedQuestions(t, st, 3)
	srv := newTestServer(t, &fakeCompleter{}, st, &fakeEngine{})

	resp, err := http.Get(srv.URL + "/api/questions/recent?limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[[]questionSummary](t, resp)
	require.Len(t, out, 2)
	assert.Equal(t, qs[2].ID, out[0].ID)
	assert.Equal(t, qs[1].ID, out[1].ID)
}

func TestSavedFiltersUnsaved(t *testing.T) {
	st := store.NewMemStore()
	qs := seedQuestions(t, st, 3)
	_, err := st.ToggleSave(context.Background(), qs[1].ID)
	require.NoError(t, err)
	srv := newTestServer(t, &fakeCompleter{}, st, &fakeEngine{})

	resp, err := http.Get(srv.URL + "/api/questions/saved")
	require.NoError(t, err)
	out := decode[[]questionSummary](t, resp)
	require.Len(t, out, 1)
	assert.Equal(t, qs[1].ID, out[0].ID)
	assert.True(t, out[0].IsSaved)
}

func TestToggleSaveRoundTrip(t *testing.T) {
	st := store.NewMemStore()
	qs := seedQuestions(t, st, 1)
	srv := newTestServer(t, &fakeCompleter{}, st, &fakeEngine{})

	url := srv.URL + "/api/questions/" + strconv.Itoa(qs[0].ID) + "/toggle-save"

	resp := doJSON(t, "PATCH", url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[map[string]any](t, resp)
	assert.Equal(t, true, first["isSaved"])

	resp = doJSON(t, "PATCH", url, nil)
	second := decode[map[string]any](t, resp)
	assert.Equal(t, false, second["isSaved"])
}

func TestToggleSaveNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeCompleter{}, store.NewMemStore(), &fakeEngine{})

	resp := doJSON(t, "PATCH", srv.URL+"/api/questions/999/toggle-save", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
