package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttalk/agenttalk/internal/configstore"
	"github.com/agenttalk/agenttalk/internal/queue"
	"github.com/agenttalk/agenttalk/internal/state"
)

type noopStopper struct{ calls int }

func (n *noopStopper) Stop() { n.calls++ }

func newTestServer(t *testing.T) (*Server, *state.State, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	st := state.New()
	store, err := configstore.New(dir, log.New(nil))
	require.NoError(t, err)
	q := queue.New()
	s := New(st, store, q, &noopStopper{}, dir, log.New(nil), nil)
	return s, st, q
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func TestHealth_NotReadyThenReady(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "initializing", body["status"])

	s.MarkReady()
	rec = doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpeak_HappyPath(t *testing.T) {
	s, _, q := newTestServer(t)
	s.MarkReady()

	rec := doRequest(s, http.MethodPost, "/speak", speakRequest{Text: "Hello world. It works."})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp speakResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 2, resp.Sentences)
	assert.Equal(t, 2, q.Len())
}

func TestSpeak_SkipPath(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.MarkReady()

	rec := doRequest(s, http.MethodPost, "/speak", speakRequest{Text: "```\ncode\n```"})
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp speakResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "skipped", resp.Status)
}

func TestSpeak_PreprocessPanicReturns500(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.MarkReady()
	s.preprocessFn = func(string) []string { panic("boom") }

	rec := doRequest(s, http.MethodPost, "/speak", speakRequest{Text: "hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestSpeak_NotReady(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/speak", speakRequest{Text: "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSpeak_Backpressure(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.MarkReady()

	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		lastRec = doRequest(s, http.MethodPost, "/speak", speakRequest{Text: "Single sentence here."})
	}
	assert.Equal(t, http.StatusTooManyRequests, lastRec.Code)
	var resp speakResponse
	require.NoError(t, json.Unmarshal(lastRec.Body.Bytes(), &resp))
	assert.Equal(t, "dropped", resp.Status)
}

func TestConfigUpdate_VoiceChange(t *testing.T) {
	s, st, _ := newTestServer(t)
	s.MarkReady()

	rec := doRequest(s, http.MethodPost, "/config", map[string]any{"voice": "bm_george"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bm_george", st.Voice())

	var resp configUpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Updated, "voice")
}

func TestConfigUpdate_EngineSwitch(t *testing.T) {
	s, st, _ := newTestServer(t)
	s.MarkReady()

	doRequest(s, http.MethodPost, "/config", map[string]any{
		"model":            "piper",
		"piper_model_path": "/models/piper/en_US.onnx",
	})
	assert.Equal(t, state.EngineSecondary, st.EngineKind())
	assert.Equal(t, "/models/piper/en_US.onnx", st.SecondaryModelPath())

	doRequest(s, http.MethodPost, "/config", map[string]any{"model": "kokoro"})
	assert.Equal(t, state.EnginePrimary, st.EngineKind())
	assert.Equal(t, "/models/piper/en_US.onnx", st.SecondaryModelPath(), "switching back must not unload the secondary model path")
}

func TestPiperVoices_EnumeratesModels(t *testing.T) {
	dir := t.TempDir()
	piperDir := dir + "/piper"
	require.NoError(t, os.MkdirAll(piperDir, 0o755))
	require.NoError(t, os.WriteFile(piperDir+"/en_US.onnx", []byte("x"), 0o644))

	st := state.New()
	store, err := configstore.New(dir, log.New(nil))
	require.NoError(t, err)
	s := New(st, store, queue.New(), &noopStopper{}, dir, log.New(nil), nil)

	rec := doRequest(s, http.MethodGet, "/piper-voices", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"en_US"}, body["voices"])
}

func TestStop_StopsAndSchedulesExit(t *testing.T) {
	s, _, _ := newTestServer(t)
	stopper := &noopStopper{}
	s.stopper = stopper
	exited := make(chan struct{})
	s.exitFn = func() { close(exited) }

	rec := doRequest(s, http.MethodPost, "/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stopper.calls)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("exitFn was not invoked after /stop")
	}
}
