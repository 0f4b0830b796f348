package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quayside/adotrack/internal/workitems"
)

// buildMapper is the resolution entry point the server fronts.
type buildMapper interface {
	Map(ctx context.Context, info *workitems.BuildInformation, tenant string) workitems.Outcome
}

// Server hosts the plugin surface over HTTP: the connectivity check and the
// build link resolution endpoint.
type Server struct {
	log    *slog.Logger
	check  *CheckAction
	mapper buildMapper
	mux    *http.ServeMux
}

// NewServer wires the handlers.
func NewServer(log *slog.Logger, check *CheckAction, mapper buildMapper) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{log: log, check: check, mapper: mapper, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/connectivity-check", s.handleConnectivityCheck)
	s.mux.HandleFunc("POST /api/build-links", s.handleBuildLinks)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s
}

// ServeHTTP tags every request with an id before dispatching.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	r = r.WithContext(withRequestLog(r.Context(), s.log.With("request_id", requestID)))
	s.mux.ServeHTTP(w, r)
}

type logKey struct{}

func withRequestLog(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, log)
}

func requestLog(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(logKey{}).(*slog.Logger); ok {
		return log
	}
	return fallback
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConnectivityCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	messages := s.check.Execute(r.Context(), req)
	requestLog(r.Context(), s.log).Info("connectivity check executed", "messages", len(messages))
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// buildLinksRequest is the resolution request the host posts per build.
type buildLinksRequest struct {
	workitems.BuildInformation
	Tenant string `json:"tenant"`
}

func (s *Server) handleBuildLinks(w http.ResponseWriter, r *http.Request) {
	var req buildLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	outcome := s.mapper.Map(r.Context(), &req.BuildInformation, req.Tenant)
	log := requestLog(r.Context(), s.log)

	resp := map[string]any{"state": stateName(outcome.State)}
	switch outcome.State {
	case workitems.StateResolved:
		if outcome.Links == nil {
			resp["links"] = []any{}
		} else {
			resp["links"] = outcome.Links
		}
		log.Info("build links resolved", "package_id", req.PackageID, "links", len(outcome.Links))
	case workitems.StateDisabled:
		log.Info("build link resolution skipped, tracker disabled")
	case workitems.StateFailed:
		resp["errors"] = outcome.Errors
		log.Warn("build link resolution failed", "package_id", req.PackageID, "errors", outcome.Errors)
	}
	writeJSON(w, http.StatusOK, resp)
}

func stateName(state workitems.State) string {
	switch state {
	case workitems.StateDisabled:
		return "disabled"
	case workitems.StateFailed:
		return "failed"
	default:
		return "resolved"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
