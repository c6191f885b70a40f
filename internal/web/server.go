// Package web provides the HTTP surface of the tank-monitor daemon:
// an HTML status page, a JSON snapshot, Prometheus metrics, and the
// REST configuration API the menu/dashboard collaborators use. All
// state mutations travel as commands over a channel into the tick
// loop; handlers never touch the engine directly.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/tank-monitor/internal/meter"
	"github.com/sweeney/tank-monitor/internal/status"
)

// commandTimeout bounds how long a handler waits for the tick loop to
// accept and answer a command. A dead loop turns into 503s instead of
// hung requests.
const commandTimeout = 2 * time.Second

// Server serves the status page, metrics, and the configuration API.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- meter.CommandRequest
}

// New creates a Server reading state from the tracker and submitting
// mutations on the commands channel.
func New(addr string, tracker *status.Tracker, commands chan<- meter.CommandRequest) *Server {
	s := &Server{tracker: tracker, commands: commands}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(newMetrics(tracker), promhttp.HandlerOpts{})).Methods("GET")

	sr := r.PathPrefix("/api").Subrouter()
	sr.HandleFunc("/config", s.getConfig).Methods("GET")
	sr.HandleFunc("/config", s.putConfig).Methods("PUT")
	sr.HandleFunc("/total/reset", s.resetTotal).Methods("POST")
	sr.HandleFunc("/leak/clear", s.clearLeak).Methods("POST")
	sr.HandleFunc("/events", s.getEvents).Methods("GET")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// maxPageEvents bounds the history shown on the status page; the full
// ring stays available at /api/events.
const maxPageEvents = 10

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	events := s.tracker.Events()
	if len(events) > maxPageEvents {
		events = events[:maxPageEvents]
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, events)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatJSON(snap))
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsJSON(snap.Meter.Settings))
}

// putConfig applies a full settings document. The threshold triple goes
// first: an unordered triple rejects the whole request before anything
// else changes, so a bad write never half-applies.
func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	var in SettingsJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := s.submit(meter.SetThresholds{Low: in.AlertLow, Mid: in.AlertMid, High: in.AlertHigh}); err != nil {
		s.commandError(w, err, http.StatusUnprocessableEntity)
		return
	}
	for _, cmd := range []meter.Command{
		meter.SetCalibration{PulsesPerLiter: in.CalibrationPPL},
		meter.SetCapacity{Liters: in.CapacityLiters},
		meter.SetAlertsEnabled{Enabled: in.AlertsEnabled},
	} {
		if err := s.submit(cmd); err != nil {
			s.commandError(w, err, http.StatusUnprocessableEntity)
			return
		}
	}

	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsJSON(snap.Meter.Settings))
}

func (s *Server) resetTotal(w http.ResponseWriter, r *http.Request) {
	if err := s.submit(meter.ResetTotal{}); err != nil {
		s.commandError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearLeak(w http.ResponseWriter, r *http.Request) {
	if err := s.submit(meter.ClearLeak{}); err != nil {
		s.commandError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(formatEvents(s.tracker.Events()))
}

// loopGoneError is reported when the tick loop stops draining commands.
type loopGoneError struct{}

func (loopGoneError) Error() string { return "engine loop unavailable" }

// submit delivers one command to the tick loop and waits for its
// answer. Timing out on either side means the loop is gone.
func (s *Server) submit(cmd meter.Command) error {
	req := meter.CommandRequest{Cmd: cmd, Reply: make(chan error, 1)}

	deadline := time.NewTimer(commandTimeout)
	defer deadline.Stop()

	select {
	case s.commands <- req:
	case <-deadline.C:
		return loopGoneError{}
	}

	select {
	case err := <-req.Reply:
		return err
	case <-deadline.C:
		return loopGoneError{}
	}
}

// commandError maps a submit failure onto an HTTP status: loop trouble
// is a 503 regardless of what the caller wanted to report.
func (s *Server) commandError(w http.ResponseWriter, err error, code int) {
	if _, gone := err.(loopGoneError); gone {
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}
