package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the full route table wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(embedFS)))

	// Views
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("POST /assess", s.assessFormHandler)

	// API
	mux.HandleFunc("POST /api/v1/assessments", s.createAssessmentHandler)
	mux.HandleFunc("GET /api/v1/assessments", s.listAssessmentsHandler)
	mux.HandleFunc("GET /api/v1/assessments/current", s.currentAssessmentHandler)
	mux.HandleFunc("GET /api/v1/assessments/stats", s.statsHandler)
	mux.HandleFunc("GET /api/v1/assessments/{id}", s.getAssessmentHandler)
	mux.HandleFunc("POST /api/v1/assessments/{id}/report", s.reportHandler)
	mux.HandleFunc("GET /api/v1/model", s.modelHandler)

	// Operations
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return requestMiddleware(s.logger, mux)
}

func requestMiddleware(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		log.Debug("request completed", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	std := apperrors.AsStandard(err)
	respondJSON(w, apperrors.HTTPStatus(std.Code), map[string]any{"error": std})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	payload := map[string]string{
		"status":      "ready",
		"modelStatus": string(s.opts.Provider.Status()),
		"time":        time.Now().Format(time.RFC3339),
	}
	if !s.opts.Provider.Ready() {
		status = http.StatusServiceUnavailable
		payload["status"] = "starting"
	}
	respondJSON(w, status, payload)
}
