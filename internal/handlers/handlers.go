package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/auth"
	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/search"
	"github.com/p-ddong/floratio-lib-client/internal/services"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/storage"
	"github.com/p-ddong/floratio-lib-client/internal/store"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

// maxUploadMemory bounds ParseMultipartForm; single images are capped lower
// by the wizard and the searcher
const maxUploadMemory = 32 << 20

// DraftStore persists wizard snapshots
type DraftStore interface {
	wizard.DraftSaver
	LoadDraft(ctx context.Context, owner, key string) (*models.Draft, map[string][]byte, error)
	ListDrafts(ctx context.Context, owner string) ([]storage.DraftSummary, error)
	DeleteDraft(ctx context.Context, owner, key string) error
}

// EventPublisher announces user actions to other services
type EventPublisher interface {
	PublishContributionSubmitted(ctx context.Context, event models.ContributionSubmittedEvent) error
	PublishMarkToggled(ctx context.Context, event models.MarkToggledEvent) error
}

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of the handlers. Drafts and Events may be nil.
type Deps struct {
	Templates      fs.FS
	Auth           *services.AuthService
	Plants         *services.PlantService
	Contributions  *services.ContributionService
	Marks          *services.MarkService
	Searcher       *search.Searcher
	Wizards        *wizard.Registry
	Sessions       *session.Manager
	Drafts         DraftStore
	Events         EventPublisher
	Checks         map[string]HealthCheck
	JWTSecret      string
	MinDescription int
}

// Handler contains all HTTP handlers
type Handler struct {
	templates map[string]*template.Template
	Deps
}

var pages = []string{
	"index.html",
	"plants.html",
	"plant_detail.html",
	"login.html",
	"register.html",
	"verify_email.html",
	"userdetail.html",
	"contributions.html",
	"contribution_detail.html",
	"wizard.html",
	"search.html",
	"not_found.html",
}

// NewHandler parses the templates and creates a new handler instance
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Templates == nil {
		return nil, errors.New("templates are required")
	}
	if deps.Wizards == nil {
		deps.Wizards = wizard.NewRegistry(2 * time.Hour)
	}

	baseTmpl, err := template.New("base.html").Funcs(funcMap()).ParseFS(deps.Templates, "base.html", "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	templates := make(map[string]*template.Template)
	for _, page := range pages {
		tmpl, err := baseTmpl.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone base template for %s: %w", page, err)
		}

		if _, err := tmpl.ParseFS(deps.Templates, page); err != nil {
			return nil, fmt.Errorf("failed to parse page template %s: %w", page, err)
		}

		templates[page] = tmpl
	}

	return &Handler{templates: templates, Deps: deps}, nil
}

// page is the data every full page receives
type page struct {
	Title   string
	User    *models.User
	Flashes []session.Flash
	Path    string
	Data    interface{}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// render writes a full page, or only the named block for HTMX requests when
// block is not empty
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, block, title string, data interface{}) {
	tmpl, ok := h.templates[name]
	if !ok {
		log.Error().Msgf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s := h.session(r)
	p := page{Title: title, Path: r.URL.Path, Data: data, User: s.Store.Snapshot().Auth.User}

	target := "base.html"
	if block != "" && isHTMX(r) {
		target = block
		// htmx only swaps successful responses
		if status >= 400 && status < 500 {
			status = http.StatusOK
		}
	} else {
		p.Flashes = s.Flashes()
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, target, p); err != nil {
		log.Error().Err(err).Str("template", name).Str("block", target).Msg("Failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, buf.String())
}

// redirect sends the browser to target, through HX-Redirect for HTMX requests
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// session returns the request's session. Requests outside the session
// middleware get a throwaway one.
func (h *Handler) session(r *http.Request) *session.Session {
	if s, ok := session.FromContext(r.Context()); ok {
		return s
	}
	return session.New()
}

func (h *Handler) state(r *http.Request) store.State {
	return h.session(r).Store.Snapshot()
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	h.session(r).AddFlash(kind, message)
}

// owner identifies the logged-in user for drafts and events
func owner(st store.State) string {
	if st.Auth.User == nil {
		return ""
	}
	if st.Auth.User.ID != "" {
		return st.Auth.User.ID
	}
	return st.Auth.User.Username
}

// requireLogin returns the bearer token, or redirects to the login page
func (h *Handler) requireLogin(w http.ResponseWriter, r *http.Request) (string, bool) {
	st := h.state(r)
	if st.LoggedIn() {
		if _, err := auth.Decode(st.Auth.Token, h.JWTSecret); err == nil {
			return st.Auth.Token, true
		}
		// Expired or rejected tokens end the session
		s := h.session(r)
		s.Store.Dispatch(store.Logout{})
		s.AddFlash(session.FlashInfo, "Your session has expired, please log in again")
	}
	redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()))
	return "", false
}

// handleAPIError reacts to a failed backend call. It returns true when the
// response has been written: unauthorized calls log the user out and go to
// the login page, not-found calls render the not-found page. Other errors
// only queue a flash message and leave the response to the caller.
func (h *Handler) handleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) bool {
	if errors.Is(err, context.Canceled) {
		// Client went away, nothing to answer
		return true
	}
	if client.IsUnauthorized(err) {
		h.session(r).Store.Dispatch(store.Logout{})
		h.flash(r, session.FlashError, "Please log in again")
		redirect(w, r, "/login")
		return true
	}
	if client.IsNotFound(err) {
		h.NotFoundHandler(w, r)
		return true
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
	h.flash(r, session.FlashError, client.Message(err, fallback))
	return false
}

// NotFoundHandler renders the not-found page
func (h *Handler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found.html", "", "Not found", nil)
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = "unhealthy"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
