package server

import (
	"encoding/json"
	"net/http"

	"github.com/conneroisu/paramtrail/internal/errors"
	"github.com/conneroisu/paramtrail/internal/session"
	"github.com/conneroisu/paramtrail/internal/validation"
	"github.com/conneroisu/paramtrail/internal/version"
)

// maxFormBytes caps POST /api/params bodies.
const maxFormBytes = 64 << 10

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	Parameters       int    `json:"parameters"`
	Sessions         int    `json:"sessions"`
	InspectorClients int    `json:"inspector_clients,omitempty"`
}

// ComposeResponse is the body of GET /api/compose.
type ComposeResponse struct {
	URL string `json:"url"`
}

// AssignResponse is the body of POST /api/params.
type AssignResponse struct {
	Accepted   int               `json:"accepted"`
	Parameters map[string]string `json:"parameters"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err *errors.ParamError) {
	s.errHandler.Handle(r.Context(), err)
	writeJSON(w, status, ErrorResponse{Error: err.Message, Code: err.Code})
}

// storeFor returns the request's session store. The session middleware
// guarantees one on every tracked route.
func storeFor(r *http.Request) *session.Store {
	if store, ok := session.FromContext(r.Context()); ok {
		return store
	}
	return session.NewStore()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Version:    version.Get().Short(),
		Parameters: s.source.Current().Len(),
		Sessions:   s.sessions.Len(),
	}
	if s.inspector != nil {
		resp.InspectorClients = s.inspector.ClientCount()
	}
	s.metrics.SetSessions(resp.Sessions)
	writeJSON(w, http.StatusOK, resp)
}

// handleParamsDelete ends the visitor's session, discarding every captured
// value. It is mounted outside the session middleware so it never creates a
// session just to end it.
func (s *Server) handleParamsDelete(w http.ResponseWriter, r *http.Request) {
	s.sessions.Destroy(w, r)
	s.metrics.SetSessions(s.sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

// handleParamsPost is the form-submission adapter. Fields are resolved,
// decoded and sanitized exactly like query parameters, in the same
// name-then-alias order.
func (s *Server) handleParamsPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid form body").WithCause(err))
		return
	}

	store := storeFor(r)
	accepted := 0
	for _, key := range s.source.Current().IncomingKeys() {
		if s.pipeline.Assign(r.Context(), store, key, r.PostForm.Get(key)) {
			accepted++
		}
	}

	writeJSON(w, http.StatusOK, AssignResponse{
		Accepted:   accepted,
		Parameters: store.All(),
	})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("url")
	if err := validation.ValidateBaseURL(base); err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			errors.NewValidationError(errors.ErrCodeInvalidURL, "url must be an http(s) URL or a site path").
				WithCause(err))
		return
	}

	names := r.URL.Query()["p"]
	writeJSON(w, http.StatusOK, ComposeResponse{
		URL: s.composer.FromStore(base, storeFor(r), names...),
	})
}

// handleGo redirects to a parameter's configured target with the session's
// values carried along.
func (s *Server) handleGo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := s.source.Current().Lookup(name)
	if !ok || p.RedirectURL == "" {
		s.writeError(w, r, http.StatusNotFound,
			errors.NewValidationError(errors.ErrCodeUnknownParameter, "no redirect configured for parameter").
				WithParameter(name))
		return
	}

	http.Redirect(w, r, s.composer.FromStore(p.RedirectURL, storeFor(r)), http.StatusFound)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.RLock()
	form, ok := s.forms[name]
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, r, http.StatusNotFound,
			errors.NewValidationError(errors.ErrCodeUnknownForm, "form is not configured").
				WithContext("form", name))
		return
	}

	http.Redirect(w, r, s.builder.Build(form, storeFor(r)), http.StatusFound)
}
