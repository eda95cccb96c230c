// Package api serves the operator HTTP surface of a running match.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AaronLay10/StageEngine/internal/events"
	"github.com/AaronLay10/StageEngine/internal/log"
	"github.com/AaronLay10/StageEngine/internal/match"
	"github.com/AaronLay10/StageEngine/internal/stage"
	"github.com/AaronLay10/StageEngine/internal/version"
)

// MatchView is the slice of a running match the API needs. match.Session satisfies it.
type MatchView interface {
	ID() string
	Status() match.Status
	CommandInfo(textMode bool) string
	Timeout() stage.Code
	Leave(pid stage.PlayerID) stage.Code
	ComputerAct(pid stage.PlayerID, countAsHuman bool) stage.Code
	Close()
}

// Options configures a Server. Zero values disable the matching feature.
type Options struct {
	Auth    *Auth
	History match.HistorySource
	TLS     *TLSConfig
}

// Server routes operator requests to the current match.
type Server struct {
	mu      sync.RWMutex
	session MatchView
	history match.HistorySource
	auth    *Auth
	tls     *TLSConfig
	checks  []readinessCheck
	router  chi.Router
	log     zerolog.Logger
}

type readinessCheck struct {
	name     string
	optional bool
	probe    func() error
}

// New builds the router. The match is attached later with SetSession.
func New(opts Options) *Server {
	s := &Server{
		history: opts.History,
		auth:    opts.Auth,
		tls:     opts.TLS,
		log:     log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestMetrics)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAnyRole())
		r.Get("/events", s.handleEvents)
		r.Get("/ws/events", s.handleWSEvents)
		r.Get("/match", s.handleMatch)
		r.Get("/match/commands", s.handleCommands)
		r.Get("/match/history", s.handleHistory)
		r.Post("/operator/timeout", s.handleTimeout)
		r.Post("/operator/leave", s.handleLeave)
		r.Post("/operator/act", s.handleAct)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAdmin())
		r.Post("/operator/abort", s.handleAbort)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetSession attaches the running match. nil detaches it.
func (s *Server) SetSession(v MatchView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = v
}

// AddCheck registers a readiness probe. A failing optional probe is reported
// but does not make the service unready.
func (s *Server) AddCheck(name string, optional bool, probe func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, readinessCheck{name: name, optional: optional, probe: probe})
}

func (s *Server) current() MatchView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

// CheckStatus is one probe result in a ReadinessResponse.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckStatus `json:"checks"`
}

// OperatorResponse answers every operator action.
type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// LeaveRequest names the player an operator removes.
type LeaveRequest struct {
	PlayerID *uint64 `json:"player_id"`
}

// ActRequest gives a seat a computer turn.
type ActRequest struct {
	PlayerID     *uint64 `json:"player_id"`
	CountAsHuman bool    `json:"count_as_human"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, OperatorResponse{OK: false, Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "matchd",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := append([]readinessCheck{}, s.checks...)
	attached := s.session != nil
	s.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckStatus, len(checks)+1)}
	if attached {
		resp.Checks["match"] = CheckStatus{Status: "ok"}
	} else {
		resp.Checks["match"] = CheckStatus{Status: "waiting"}
		resp.Ready = false
	}

	for _, c := range checks {
		st := CheckStatus{Status: "ok", Optional: c.optional}
		if err := c.probe(); err != nil {
			st.Status = "error"
			st.Error = err.Error()
			if !c.optional {
				resp.Ready = false
			}
		}
		resp.Checks[c.name] = st
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("match"); id != "" {
		writeJSON(w, http.StatusOK, events.ForMatch(id))
		return
	}
	writeJSON(w, http.StatusOK, events.Snapshot())
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}
	textMode := r.URL.Query().Get("format") != "markdown"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, sess.CommandInfo(textMode))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "history storage not configured")
		return
	}

	id := r.URL.Query().Get("match")
	if id == "" {
		if sess := s.current(); sess != nil {
			id = sess.ID()
		}
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "match required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	sum, replayed, err := match.ReplayHistory(s.history, id, limit)
	if err != nil {
		s.log.Error().Err(err).Str("match_id", id).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "no history for match")
		return
	}
	match.EmitHistoryReplayed(id, replayed)
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}

	events.Emit("info", "operator.timeout", "", map[string]interface{}{"match_id": sess.ID()})
	code := sess.Timeout()
	if code == stage.Failed {
		writeError(w, http.StatusConflict, "match not started")
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Code: code.String()})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}

	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PlayerID == nil {
		writeError(w, http.StatusBadRequest, "player_id required")
		return
	}

	pid := stage.PlayerID(*req.PlayerID)
	code := sess.Leave(pid)
	if code == stage.Failed {
		writeError(w, http.StatusNotFound, "player not in match")
		return
	}
	events.Emit("info", "operator.leave", "", map[string]interface{}{
		"match_id":  sess.ID(),
		"player_id": uint64(pid),
	})
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Code: code.String()})
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}

	var req ActRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PlayerID == nil {
		writeError(w, http.StatusBadRequest, "player_id required")
		return
	}

	pid := stage.PlayerID(*req.PlayerID)
	code := sess.ComputerAct(pid, req.CountAsHuman)
	if code == stage.Failed {
		writeError(w, http.StatusConflict, "player cannot act")
		return
	}
	events.Emit("info", "operator.act", "", map[string]interface{}{
		"match_id":       sess.ID(),
		"player_id":      uint64(pid),
		"count_as_human": req.CountAsHuman,
	})
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true, Code: code.String()})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no match running")
		return
	}
	sess.Close()
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := s.tls.Build()
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsCfg

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Bool("tls", tlsCfg != nil).Msg("api listening")
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events.CloseAllSubscribers()
		return srv.Shutdown(shutdownCtx)
	}
}
