package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/session"
)

var templateFuncs = template.FuncMap{
	"pct":       func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"fraction":  func(v float64) string { return fmt.Sprintf("%.1f", v*100) },
	"auc":       func(v float64) string { return fmt.Sprintf("%.3f", v) },
	"tierLabel": tierLabel,
}

func tierLabel(t models.Tier) string {
	switch t {
	case models.TierLow:
		return "Low risk"
	case models.TierMedium:
		return "Medium risk"
	case models.TierHigh:
		return "High risk"
	}
	return string(t)
}

type modelView struct {
	Status      modelprovider.Status
	Banner      string
	Source      string
	Placeholder bool
	Metrics     *modelprovider.Metrics
}

type pageData struct {
	Form       formView
	Assessment *models.RiskAssessment
	Alert      string
	Model      modelView
	Year       int
}

func (s *Server) modelView(r *http.Request) modelView {
	m := s.opts.Provider.Acquire(r.Context())
	v := modelView{Status: s.opts.Provider.Status()}
	if m != nil {
		v.Source = m.Source
		v.Placeholder = m.Placeholder
		v.Metrics = m.Info.Metrics
	}

	switch v.Status {
	case modelprovider.StatusSuccess:
		v.Banner = "Model loaded successfully"
	case modelprovider.StatusPlaceholder:
		v.Banner = "Using the demonstration model for assessments"
	case modelprovider.StatusError:
		v.Banner = "The model artifact could not be loaded; using the demonstration model"
	default:
		v.Banner = "Model is loading"
	}
	return v
}

// sessionID returns the visitor's session id, issuing a cookie when the
// request carries none or a malformed one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.opts.Session.CookieName); err == nil && session.ValidID(c.Value) {
		return c.Value
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.Session.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   s.opts.Session.TTL,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)

	profile := models.DefaultProfile()
	var assessment *models.RiskAssessment

	slot, err := s.opts.Sessions.Get(r.Context(), sid)
	if err != nil {
		s.logger.Error("failed to read session slot", map[string]interface{}{"error": err})
	}
	if slot != nil {
		profile = slot.Profile
		assessment = slot.Assessment
	}

	s.render(w, r, http.StatusOK, pageData{
		Form:       newFormView(profile, nil),
		Assessment: assessment,
	})
}

func (s *Server) assessFormHandler(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)

	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, pageData{
			Form:  newFormView(models.DefaultProfile(), nil),
			Alert: "The form could not be read. Please try again.",
		})
		return
	}

	profile, err := parseProfileForm(r.PostForm)
	if err != nil {
		s.render(w, r, http.StatusUnprocessableEntity, pageData{
			Form:  newFormView(profile, err),
			Alert: "Please correct the highlighted fields.",
		})
		return
	}

	if _, err := s.assess(r.Context(), sid, profile); err != nil {
		status := apperrors.HTTPStatus(apperrors.AsStandard(err).Code)
		s.render(w, r, status, pageData{
			Form:  newFormView(profile, err),
			Alert: "The assessment is currently unavailable. Please try again later.",
		})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Model = s.modelView(r)
	data.Year = time.Now().Year()

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("failed to render page", map[string]interface{}{"error": err})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
