package session

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/paramtrail/internal/errors"
)

// DefaultCookieName is used when Options.CookieName is empty.
const DefaultCookieName = "paramtrail_session"

// Options configures a Manager.
type Options struct {
	CookieName  string
	IdleTimeout time.Duration
	MaxSessions int
	Secure      bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// OnError is told about Load failures seen by Middleware.
	OnError func(r *http.Request, err error)
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Manager is an in-memory, cookie-keyed session table.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	opts     Options
	closed   bool
}

// NewManager creates a Manager. A zero IdleTimeout disables expiry and a
// zero MaxSessions disables the capacity limit.
func NewManager(opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*entry),
		opts:     opts,
	}
}

// CookieName returns the name of the cookie carrying the session ID.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Load returns the Store for the request's session, creating the session
// and setting its cookie on first touch. It fails only when the manager is
// closed or full.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Store, error) {
	id := m.readCookie(r)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.NewSessionError(errors.ErrCodeSessionClosed, "session manager is closed")
	}

	now := m.opts.Now()
	if id != "" {
		if e, ok := m.sessions[id]; ok {
			if !m.expired(e, now) {
				e.lastSeen = now
				return e.store, nil
			}
			delete(m.sessions, id)
		}
	}

	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		m.sweepLocked(now)
		if len(m.sessions) >= m.opts.MaxSessions {
			return nil, errors.NewSessionError(errors.ErrCodeSessionCapacity, "session table is full").
				WithContext("max_sessions", m.opts.MaxSessions)
		}
	}

	id = uuid.NewString()
	e := &entry{store: NewStore(), lastSeen: now}
	m.sessions[id] = e
	m.writeCookie(w, id)

	return e.store, nil
}

// Destroy ends the request's session and clears its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if id := m.readCookie(r); id != "" {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.opts.Now())
}

// Len returns the number of live sessions, expired ones included until swept.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops every session. Later Loads fail.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = make(map[string]*entry)
}

func (m *Manager) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range m.sessions {
		if m.expired(e, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) expired(e *entry, now time.Time) bool {
	return m.opts.IdleTimeout > 0 && now.Sub(e.lastSeen) > m.opts.IdleTimeout
}

func (m *Manager) readCookie(r *http.Request) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func (m *Manager) writeCookie(w http.ResponseWriter, id string) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware loads the session Store and attaches it to the request context.
// A session subsystem failure ends the request with 503.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, err := m.Load(w, r)
		if err != nil {
			if m.opts.OnError != nil {
				m.opts.OnError(r, err)
			}
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithStore(r.Context(), store)))
	})
}
