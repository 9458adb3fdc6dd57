package cmd

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simline/simline/sim/control"
	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/trace"
)

// defaultRunDuration is used when a start request carries no duration.
const defaultRunDuration = 100.0

var (
	listenAddr string        // HTTP listen address
	wsPace     time.Duration // Delay after each event sent to a websocket client
)

// server exposes a controller over HTTP.
type server struct {
	ctrl *control.Controller
	ws   *wsHub
}

func newServer(ctrl *control.Controller, events *event.Hub, pace time.Duration, buffer int) *server {
	return &server{
		ctrl: ctrl,
		ws:   newWSHub(events, pace, buffer),
	}
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/simulation/start", s.start).Methods(http.MethodPost)
	r.HandleFunc("/api/simulation/stop", s.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/simulation/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/api/workshop-layout", s.layout).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.ws.handle)
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("writing response: %v", err)
	}
}

func (s *server) start(w http.ResponseWriter, r *http.Request) {
	duration := defaultRunDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid duration: " + raw})
			return
		}
		duration = d
	}

	run, err := s.ctrl.Start(duration)
	switch {
	case errors.Is(err, control.ErrRunActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Simulation already running"})
		return
	case errors.Is(err, control.ErrInvalidDuration):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		logrus.Errorf("starting simulation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	var reported any = duration
	if math.IsInf(duration, 1) {
		reported = "inf"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "Simulation started",
		"duration": reported,
		"run_id":   run.ID,
		"seed":     run.Seed,
	})
}

func (s *server) stop(w http.ResponseWriter, _ *http.Request) {
	stopped := s.ctrl.RequestStop()
	msg := "Simulation stopped"
	if !stopped {
		msg = "No simulation running"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": msg, "stopped": stopped})
}

func (s *server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *server) layout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildLayout(s.ctrl.Config()))
}

// serveCmd runs the HTTP control surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulation control API and live event stream",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadLineConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		hub := event.NewHub()
		var consumers sync.WaitGroup
		recorder, err := startTraceRecorder(hub, &consumers)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctrl, err := control.New(cfg, controllerOptions(cmd, hub)...)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		listener, err := net.Listen("tcp", listenAddr)
		if err != nil {
			logrus.Fatalf("Failed to listen on %s: %v", listenAddr, err)
		}
		logrus.Warnf("Serving simulation API on http://%s", listener.Addr())

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		srv := newServer(ctrl, hub, wsPace, eventBuffer)
		if err := serveUntilSignal(listener, srv.router(), sigs); err != nil {
			logrus.Errorf("HTTP server stopped: %v", err)
		}
		shutdownServe(ctrl, hub, &consumers, recorder)
	},
}

// serveUntilSignal serves handler on listener until it fails or a signal
// arrives on sigs. A signal closes the listener and yields a nil error.
func serveUntilSignal(listener net.Listener, handler http.Handler, sigs <-chan os.Signal) error {
	var signalled atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigs:
			logrus.Warnf("Received %v, shutting down", sig)
			signalled.Store(true)
			listener.Close()
		case <-done:
		}
	}()

	err := http.Serve(listener, handler)
	if signalled.Load() {
		return nil
	}
	return err
}

// shutdownServe stops the active run at its next event boundary, waits for
// it, then drains every event consumer and closes the trace.
func shutdownServe(ctrl *control.Controller, hub *event.Hub, consumers *sync.WaitGroup, recorder *trace.SQLiteRecorder) {
	ctrl.RequestStop()
	if r := ctrl.Current(); r != nil {
		r.Wait()
	}
	hub.Close()
	consumers.Wait()
	closeTraceRecorder(recorder)
}

func init() {
	addLineFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8000", "HTTP listen address")
	serveCmd.Flags().DurationVar(&wsPace, "pace", 100*time.Millisecond, "Delay after each event sent to a websocket client (0 disables)")

	rootCmd.AddCommand(serveCmd)
}
