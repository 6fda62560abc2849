package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/validation"
	"diabetes-risk/internal/history"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/session"

	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

func (s *Server) createAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, apperrors.NewValidationFailedError([]apperrors.FieldError{
			{Field: "body", Message: "request body too large or unreadable"},
		}))
		return
	}

	if err := validation.ProfileSchema.ValidateJSON(body).Err(); err != nil {
		respondError(w, err)
		return
	}

	var profile models.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		respondError(w, apperrors.NewValidationFailedError([]apperrors.FieldError{
			{Field: "body", Message: err.Error()},
		}))
		return
	}

	sid := s.sessionID(w, r)
	assessment, err := s.assess(r.Context(), sid, profile)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, assessment)
}

func (s *Server) currentAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	slot, err := s.currentSlot(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if slot == nil || slot.Assessment == nil {
		respondError(w, apperrors.NewAssessmentNotFoundError("current"))
		return
	}
	respondJSON(w, http.StatusOK, slot.Assessment)
}

func (s *Server) listAssessmentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		respondError(w, apperrors.NewFeatureDisabledError("assessment history"))
		return
	}

	limit := s.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, apperrors.NewValidationFailedError([]apperrors.FieldError{
				{Field: "limit", Message: "must be a positive integer"},
			}))
			return
		}
		limit = min(n, 100)
	}

	items, err := s.opts.History.List(r.Context(), history.OwnerKey(s.callerID(r)), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if items == nil {
		items = []*models.RiskAssessment{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Index == nil {
		respondError(w, apperrors.NewFeatureDisabledError("assessment search"))
		return
	}

	stats, err := s.opts.Index.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) getAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, apperrors.NewAssessmentNotFoundError(r.PathValue("id")))
		return
	}

	a, err := s.findAssessment(r, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

type reportRequest struct {
	Email string `json:"email"`
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Notifier == nil {
		respondError(w, apperrors.NewFeatureDisabledError("email reports"))
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, apperrors.NewAssessmentNotFoundError(r.PathValue("id")))
		return
	}

	var req reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationFailedError([]apperrors.FieldError{
			{Field: "email", Message: "request body must be a JSON object with an email"},
		}))
		return
	}

	a, err := s.findAssessment(r, id)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.opts.Notifier.SendReport(r.Context(), strings.TrimSpace(req.Email), a); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":       "sent",
		"assessmentId": a.ID.String(),
	})
}

type attemptView struct {
	Path    string `json:"path"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	m := s.opts.Provider.Acquire(r.Context())

	attempts := []attemptView{}
	for _, a := range s.opts.Provider.Attempts() {
		v := attemptView{Path: a.Path, Outcome: a.Outcome.String()}
		if a.Err != nil {
			v.Error = a.Err.Error()
		}
		attempts = append(attempts, v)
	}

	payload := map[string]any{
		"status":   s.opts.Provider.Status(),
		"ready":    s.opts.Provider.Ready(),
		"attempts": attempts,
	}
	if m != nil {
		payload["source"] = m.Source
		payload["placeholder"] = m.Placeholder
		payload["info"] = m.Info
	}
	respondJSON(w, http.StatusOK, payload)
}

// callerID returns the session id from a valid cookie, or "" without
// issuing one.
func (s *Server) callerID(r *http.Request) string {
	c, err := r.Cookie(s.opts.Session.CookieName)
	if err != nil || !session.ValidID(c.Value) {
		return ""
	}
	return c.Value
}

func (s *Server) currentSlot(r *http.Request) (*session.Slot, error) {
	sid := s.callerID(r)
	if sid == "" {
		return nil, nil
	}
	return s.opts.Sessions.Get(r.Context(), sid)
}

// findAssessment looks in the caller's slot first and then in the caller's
// history. Other sessions' assessments are reported as not found.
func (s *Server) findAssessment(r *http.Request, id uuid.UUID) (*models.RiskAssessment, error) {
	slot, err := s.currentSlot(r)
	if err != nil {
		s.logger.Warn("failed to read session slot", map[string]interface{}{"error": err})
	}
	if slot != nil && slot.Assessment != nil && slot.Assessment.ID == id {
		return slot.Assessment, nil
	}

	if s.opts.History == nil {
		return nil, apperrors.NewAssessmentNotFoundError(id.String())
	}
	return s.opts.History.Get(r.Context(), history.OwnerKey(s.callerID(r)), id)
}
