// Package supervisor owns the single-instance daemon startup sequence: log
// file, PID lock, config restore, exit hook, icon construction, main-thread
// UI loop, and the control-plane/worker lifespan it launches from the
// icon's ready callback.
//
// Grounded on agenttalk/service.py (logging opened before any subsystem so
// early errors aren't lost) and the split between "build the icon" and
// "run the loop" from agenttalk/tray.py / RedClaus-cortex/apps/go-menu/main.go.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/agenttalk/agenttalk/internal/configstore"
	"github.com/agenttalk/agenttalk/internal/controlplane"
	"github.com/agenttalk/agenttalk/internal/duck"
	"github.com/agenttalk/agenttalk/internal/engine"
	"github.com/agenttalk/agenttalk/internal/iconstate"
	"github.com/agenttalk/agenttalk/internal/pidlock"
	"github.com/agenttalk/agenttalk/internal/queue"
	"github.com/agenttalk/agenttalk/internal/state"
	"github.com/agenttalk/agenttalk/internal/worker"
)

// Options configures one daemon run.
type Options struct {
	ConfigDir string
	Debug     bool
}

// Supervisor carries the wiring every startup step needs.
type Supervisor struct {
	opts    Options
	logger  *log.Logger
	st      *state.State
	store   *configstore.Store
	q       *queue.Queue
	pidLock *pidlock.Lock
	ducker  duck.Ducker
	adapter *engine.Adapter
	w       *worker.Worker
	cp      *controlplane.Server
	icon    *iconstate.Icon
	logFile *os.File
}

// Run executes the full startup sequence of §4.7 and blocks on the
// main-thread UI loop until Quit. Returns a process exit code.
func Run(opts Options) int {
	s := &Supervisor{opts: opts}

	// Step 1: open the log file before any other subsystem initializes.
	if err := s.openLog(); err != nil {
		fmt.Fprintln(os.Stderr, "agenttalkd: cannot open log file:", err)
		return 1
	}

	// Step 2: acquire the PID lock; a live prior instance exits quietly.
	pidPath := filepath.Join(opts.ConfigDir, "agenttalk.pid")
	lock, already, err := pidlock.Acquire(pidPath)
	if err != nil {
		s.logger.Error("cannot acquire pid lock", "err", err)
		return 1
	}
	if already {
		s.logger.Info("another instance is already running, exiting quietly")
		return 0
	}
	s.pidLock = lock
	defer s.pidLock.Release()

	// Step 3: restore persisted config.
	s.st = state.New()
	store, err := configstore.New(opts.ConfigDir, s.logger)
	if err != nil {
		s.logger.Error("cannot initialize config store", "err", err)
		return 1
	}
	s.store = store
	s.store.Load(s.st)

	// Step 4: register the unconditional unduck exit hook. defer covers
	// normal return; signal.Notify covers SIGINT/SIGTERM, which Go's default
	// handling would otherwise terminate the process without running any
	// defer (§4.3 "must restore snapshots on abnormal termination").
	s.ducker = duck.New()
	defer s.ducker.Unduck()
	s.installSignalHandler()

	// Worker wiring, built now but started only once the icon is ready.
	s.q = queue.New()

	modelsDir := filepath.Join(opts.ConfigDir, "models")
	primary := engine.NewKokoroEngine(filepath.Join(modelsDir, "kokoro.onnx"), filepath.Join(modelsDir, "voices.bin"))
	s.adapter = engine.NewAdapter(primary, engine.SecondaryFactory())

	// Step 5: build the icon (but don't run it yet) so the Worker can hold
	// a reference to it from construction (§9 "no module-level mutable
	// globals; the adapter is passed to the Worker at construction").
	s.icon = iconstate.New(s.st, modelsDir, s.onQuit, s.onConfigChanged)
	s.w = worker.New(s.q, s.st, s.adapter, s.ducker, s.icon, s.logger)

	s.cp = controlplane.New(s.st, s.store, s.q, s.w, modelsDir, s.logger, func() { os.Exit(0) })

	// Step 6: enter the main-thread UI loop. The icon's setup shows the
	// icon, then its ready callback runs onIconReady.

	s.icon.Run(func() { s.onIconReady(modelsDir) })
	return 0
}

// installSignalHandler unducks and exits on SIGINT/SIGTERM so a `kill <pid>`
// never leaves another application's session volume halved (§4.3, §4.7
// step 4).
func (s *Supervisor) installSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		s.logger.Info("signal received, unducking and exiting", "signal", sig)
		s.ducker.Unduck()
		s.pidLock.Release()
		os.Exit(0)
	}()
}

func (s *Supervisor) openLog() error {
	if err := os.MkdirAll(s.opts.ConfigDir, 0o755); err != nil {
		return err
	}
	logPath := filepath.Join(s.opts.ConfigDir, "agenttalk.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.logFile = f
	s.logger = log.New(f)
	s.logger.SetReportTimestamp(true)
	if s.opts.Debug {
		s.logger.SetLevel(log.DebugLevel)
	}
	return nil
}

// onIconReady starts the control plane, warms the primary engine, marks
// the control plane ready and starts the Worker, invoked from the systray
// ready callback on the main thread. It does not configure the audio device
// (the Worker opens its sink on first playback) and plays no ready sound;
// readiness is only logged.
func (s *Supervisor) onIconReady(modelsDir string) {
	ctx := context.Background()

	if err := s.cp.Start(ctx); err != nil {
		s.logger.Error("control plane failed to start", "err", err)
		return
	}

	voice := s.st.Voice()
	if err := s.adapter.Warmup(ctx, voice); err != nil {
		s.logger.Error("primary engine warmup failed", "err", err)
	}

	s.cp.MarkReady()

	go s.w.Run(ctx)

	s.logger.Info("agenttalk ready")
}

func (s *Supervisor) onQuit() {
	s.logger.Info("quit requested")
	s.ducker.Unduck()
}

func (s *Supervisor) onConfigChanged() {
	if err := s.store.Save(s.st); err != nil {
		s.logger.Error("config persist failed", "err", err)
	}
}
