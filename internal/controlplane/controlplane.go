// Package controlplane implements the loopback-only HTTP server exposing
// health, enqueue, config, voice-listing, and stop.
//
// Grounded on lookatitude-beluga-ai's REST server (router construction,
// graceful-shutdown select over ctx.Done()), trimmed to the six fixed
// paths §4.6 names — no CORS/rate-limit middleware, since this serves one
// local collaborator over loopback, not a public API.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/agenttalk/agenttalk/internal/configstore"
	"github.com/agenttalk/agenttalk/internal/preprocess"
	"github.com/agenttalk/agenttalk/internal/queue"
	"github.com/agenttalk/agenttalk/internal/state"
)

// Addr is the fixed loopback-only bind address §6 mandates.
const Addr = "127.0.0.1:5050"

// PrimaryVoices is the static list of primary-engine voice identifiers
// advertised by GET /voices, grounded on agenttalk/tray.py's KOKORO_VOICES.
var PrimaryVoices = []string{
	"af_heart", "af_bella", "af_nicole", "af_sarah", "af_sky",
	"am_adam", "am_michael",
	"bf_emma", "bf_isabella",
	"bm_george", "bm_lewis",
}

// Stopper is the subset of audiosink/worker capability /stop needs.
type Stopper interface {
	Stop()
}

// Server is the control plane HTTP server.
type Server struct {
	state      *state.State
	store      *configstore.Store
	q          *queue.Queue
	stopper    Stopper
	modelsDir  string
	logger     *log.Logger
	readyFlag  *readyFlag
	httpServer *http.Server
	exitFn     func()

	preprocessFn func(string) []string
}

type readyFlag struct {
	ready bool
}

// New builds the control plane server. exitFn is invoked ~100ms after a
// /stop response is written (§4.6 "/stop").
func New(st *state.State, store *configstore.Store, q *queue.Queue, stopper Stopper, modelsDir string, logger *log.Logger, exitFn func()) *Server {
	s := &Server{
		state:        st,
		store:        store,
		q:            q,
		stopper:      stopper,
		modelsDir:    modelsDir,
		logger:       logger,
		readyFlag:    &readyFlag{},
		exitFn:       exitFn,
		preprocessFn: preprocess.Preprocess,
	}
	return s
}

// MarkReady flips /health from 503 "initializing" to 200 "ok" (§4.7 step 6f).
func (s *Server) MarkReady() { s.readyFlag.ready = true }

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/speak", s.handleSpeak).Methods(http.MethodPost)
	r.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handlePostConfig).Methods(http.MethodPost)
	r.HandleFunc("/voices", s.handleVoices).Methods(http.MethodGet)
	r.HandleFunc("/piper-voices", s.handlePiperVoices).Methods(http.MethodGet)
	r.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	return r
}

// Start runs the server in a background goroutine and returns immediately;
// it never installs signal handlers, leaving those to the Supervisor's
// main-thread UI loop (§4.6 last paragraph).
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    Addr,
		Handler: s.router(),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			s.logger.Error("control plane listener failed", "err", err)
		}
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.readyFlag.ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakResponse struct {
	Status    string `json:"status"`
	Sentences int    `json:"sentences,omitempty"`
	Dropped   int    `json:"dropped,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if !s.readyFlag.ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	sentences, failed := s.preprocessSafely(req.Text)
	if failed {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "reason": "preprocess failure"})
		return
	}
	if len(sentences) == 0 {
		writeJSON(w, http.StatusOK, speakResponse{Status: "skipped", Reason: "no speakable sentences"})
		return
	}

	queued, dropped := 0, 0
	stoppedEarly := false
	if pre := s.state.PreCuePath(); pre != "" {
		if err := s.q.TryPush(queue.NewCue(pre)); err != nil {
			stoppedEarly = true
		}
	}
	for _, sentence := range sentences {
		if stoppedEarly {
			dropped++
			continue
		}
		if err := s.q.TryPush(queue.NewUtterance(sentence)); err != nil {
			dropped++
			stoppedEarly = true
			continue
		}
		queued++
	}
	if post := s.state.PostCuePath(); post != "" && queued > 0 {
		_ = s.q.TryPush(queue.NewCue(post))
	}

	if queued == 0 {
		writeJSON(w, http.StatusTooManyRequests, speakResponse{Status: "dropped", Reason: "queue full"})
		return
	}
	writeJSON(w, http.StatusAccepted, speakResponse{Status: "queued", Sentences: queued, Dropped: dropped})
}

// preprocessSafely isolates s.preprocessFn so a panic there maps to the 500
// "preprocess failure" response (§4.6) rather than crashing the request
// handler or silently collapsing into the distinct "zero speakable
// sentences" 200 "skipped" outcome.
func (s *Server) preprocessSafely(text string) (out []string, failed bool) {
	defer func() {
		if recover() != nil {
			out = nil
			failed = true
		}
	}()
	return s.preprocessFn(text), false
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.ToPersistable())
}

type configUpdateResponse struct {
	Status  string   `json:"status"`
	Updated []string `json:"updated,omitempty"`
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	var updated []string
	for key, value := range raw {
		switch key {
		case "voice":
			var v string
			if json.Unmarshal(value, &v) == nil {
				s.state.SetVoice(v)
				updated = append(updated, key)
			}
		case "speed":
			var v float64
			if json.Unmarshal(value, &v) == nil {
				s.state.SetSpeed(v)
				updated = append(updated, key)
			}
		case "volume":
			var v float64
			if json.Unmarshal(value, &v) == nil {
				s.state.SetVolume(v)
				updated = append(updated, key)
			}
		case "muted":
			var v bool
			if json.Unmarshal(value, &v) == nil {
				s.state.SetMuted(v)
				updated = append(updated, key)
			}
		case "model":
			var v string
			if json.Unmarshal(value, &v) == nil {
				if v == "piper" {
					s.state.SetEngineKind(state.EngineSecondary)
				} else {
					s.state.SetEngineKind(state.EnginePrimary)
				}
				updated = append(updated, key)
			}
		case "piper_model_path":
			var v string
			if json.Unmarshal(value, &v) == nil {
				s.state.SetSecondaryModelPath(v)
				updated = append(updated, key)
			}
		case "pre_cue_path":
			var v string
			if json.Unmarshal(value, &v) == nil {
				s.state.SetPreCuePath(v)
				updated = append(updated, key)
			}
		case "post_cue_path":
			var v string
			if json.Unmarshal(value, &v) == nil {
				s.state.SetPostCuePath(v)
				updated = append(updated, key)
			}
		case "speech_mode":
			var v string
			if json.Unmarshal(value, &v) == nil {
				s.state.SetSpeechMode(state.SpeechMode(v))
				updated = append(updated, key)
			}
		default:
			s.logger.Warn("config update: unknown field ignored", "field", key)
		}
	}

	if err := s.store.Save(s.state); err != nil {
		s.logger.Error("config persist failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	writeJSON(w, http.StatusOK, configUpdateResponse{Status: "ok", Updated: updated})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"voices": PrimaryVoices})
}

func (s *Server) handlePiperVoices(w http.ResponseWriter, r *http.Request) {
	piperDir := filepath.Join(s.modelsDir, "piper")
	entries, err := os.ReadDir(piperDir)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string][]string{"voices": {}})
		return
	}
	var voices []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".onnx") {
			continue
		}
		voices = append(voices, strings.TrimSuffix(e.Name(), ".onnx"))
	}
	sort.Strings(voices)
	writeJSON(w, http.StatusOK, map[string][]string{"voices": voices})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.stopper.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	if s.exitFn != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.exitFn()
		}()
	}
}
