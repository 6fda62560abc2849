// Package server is the web front end: the assessment form, the result
// view, a JSON API and the operational endpoints.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/history"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/risk"
	"diabetes-risk/internal/session"
)

const maxHeaderBytes = 1 << 20

//go:embed assets/* templates/*
var embedFS embed.FS

// ModelProvider is the part of modelprovider.Provider the server needs.
type ModelProvider interface {
	Acquire(ctx context.Context) *modelprovider.Model
	Status() modelprovider.Status
	Attempts() []modelprovider.LoadResult
	Ready() bool
}

type Indexer interface {
	Index(ctx context.Context, a *models.RiskAssessment) error
	Stats(ctx context.Context) (*history.TierStats, error)
}

type Notifier interface {
	AlertHighRisk(ctx context.Context, a *models.RiskAssessment) (bool, error)
	SendReport(ctx context.Context, to string, a *models.RiskAssessment) error
}

// Options wires the server. History, Index and Notifier may be nil.
type Options struct {
	Server       config.ServerConfig
	Session      config.SessionConfig
	HistoryLimit int

	Provider ModelProvider
	Scorer   *risk.Scorer
	Sessions session.Store
	History  history.Repository
	Index    Indexer
	Notifier Notifier
	Logger   logger.Logger
}

type Server struct {
	opts   Options
	tmpl   *template.Template
	logger logger.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Provider == nil || opts.Scorer == nil || opts.Sessions == nil {
		return nil, errors.New("server needs a model provider, a scorer and a session store")
	}
	if opts.Session.CookieName == "" {
		opts.Session.CookieName = "risk_session"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(embedFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		opts:   opts,
		tmpl:   tmpl,
		logger: opts.Logger.WithFields(map[string]interface{}{"component": "http"}),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.opts.Server.Address,
		Handler:        s.Handler(),
		ReadTimeout:    config.GetDuration(s.opts.Server.ReadTimeout),
		WriteTimeout:   config.GetDuration(s.opts.Server.WriteTimeout),
		MaxHeaderBytes: maxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("server started", map[string]interface{}{"address": s.opts.Server.Address})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := config.GetDuration(s.opts.Server.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down server", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// assess scores profile for the session and replaces its slot. On scoring
// failure the slot keeps the profile and drops the previous assessment.
func (s *Server) assess(ctx context.Context, sid string, profile models.UserProfile) (*models.RiskAssessment, error) {
	model := s.opts.Provider.Acquire(ctx)
	assessment, scoreErr := s.opts.Scorer.Score(ctx, profile, model)

	if apperrors.HasCode(scoreErr, apperrors.ErrCodeValidationFailed) {
		return nil, scoreErr
	}

	slot := session.Slot{Profile: profile, Assessment: assessment, UpdatedAt: time.Now().UTC()}
	if err := s.opts.Sessions.Put(ctx, sid, slot); err != nil {
		s.logger.Error("failed to store session slot", map[string]interface{}{"error": err})
		if scoreErr == nil {
			return nil, err
		}
	}
	if scoreErr != nil {
		return nil, scoreErr
	}

	s.record(ctx, sid, assessment)
	return assessment, nil
}

// record fans a produced assessment out to history, search and alerts.
// Failures are logged and do not affect the response.
func (s *Server) record(ctx context.Context, sid string, a *models.RiskAssessment) {
	fields := map[string]interface{}{"assessmentId": a.ID.String()}

	if s.opts.History != nil {
		if err := s.opts.History.Save(ctx, history.OwnerKey(sid), a); err != nil {
			s.logger.Warn("assessment not saved to history", withErr(fields, err))
		}
	}
	if s.opts.Index != nil {
		if err := s.opts.Index.Index(ctx, a); err != nil {
			s.logger.Warn("assessment not indexed", withErr(fields, err))
		}
	}
	if s.opts.Notifier != nil {
		if _, err := s.opts.Notifier.AlertHighRisk(ctx, a); err != nil {
			s.logger.Warn("high risk alert not delivered", withErr(fields, err))
		}
	}
}

func withErr(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err
	return out
}
