package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	apimw "github.com/hamed0406/keepalive/internal/httpapi/middleware"
	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/runlog"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// RunController is the part of scheduler.Runner the API drives.
type RunController interface {
	Start(ctx context.Context, targets []domain.Target, retention time.Duration) bool
	Last() (scheduler.RunReport, bool)
}

type Server struct {
	Logger    *zap.Logger
	Targets   []domain.Target
	Retention time.Duration
	Outcomes  repo.OutcomeStore
	Log       *runlog.Log
	Runs      RunController
	Gatherer  prometheus.Gatherer

	// BaseCtx bounds runs triggered through the API; it should be cancelled
	// on shutdown.
	BaseCtx context.Context
}

func NewServer(l *zap.Logger, targets []domain.Target, retention time.Duration, outcomes repo.OutcomeStore, log *runlog.Log, runs RunController) *Server {
	return &Server{
		Logger:    l,
		Targets:   targets,
		Retention: retention,
		Outcomes:  outcomes,
		Log:       log,
		Runs:      runs,
		Gatherer:  prometheus.DefaultGatherer,
		BaseCtx:   context.Background(),
	}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/log", s.handleLog)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/run", s.handleRun)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type targetView struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	out := make([]targetView, 0, len(s.Targets))
	for _, t := range s.Targets {
		out = append(out, targetView{ID: t.ID, Authenticated: t.HasToken()})
	}
	writeJSON(w, http.StatusOK, out)
}

type statusView struct {
	Targets    []domain.Outcome     `json:"targets"`
	LastRun    *scheduler.RunReport `json:"last_run"`
	LastRunAgo string               `json:"last_run_ago,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.Outcomes.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("status_latest_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
		return
	}
	v := statusView{Targets: latest}
	if rep, ok := s.Runs.Last(); ok {
		v.LastRun = &rep
		v.LastRunAgo = humanize.Time(rep.FinishedAt)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	lines, err := s.Log.Tail(limit)
	if err != nil {
		s.Logger.Warn("log_tail_failed", zap.String("path", s.Log.Path()), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "log unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.Runs.Start(s.BaseCtx, s.Targets, s.Retention) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run in progress"})
		return
	}
	s.Logger.Info("run_triggered", zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// parseLimit clamps ?limit= to [1, maxLogLimit], defaulting when absent or bad.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLogLimit
	}
	if n > maxLogLimit {
		return maxLogLimit
	}
	return n
}
