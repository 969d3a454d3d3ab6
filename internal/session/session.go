// Package session keeps the client state of each browser between requests.
// Sessions are identified by a cookie and stored in Redis, or in process
// memory when Redis is unavailable.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/store"
)

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot notification shown on the next rendered page
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the server side of one browser session
type Session struct {
	ID    string
	Store *store.Store

	mu       sync.Mutex
	remember bool
	flashes  []Flash
	isNew    bool
	destroy  bool
}

type record struct {
	State    store.State `json:"state"`
	Flashes  []Flash     `json:"flashes,omitempty"`
	Remember bool        `json:"remember"`
}

// New returns a fresh session that is not yet stored anywhere
func New() *Session {
	return newSession()
}

func newSession() *Session {
	return &Session{ID: uuid.New().String(), Store: store.New(store.State{}), isNew: true}
}

// IsNew reports whether the session was created by this request
func (s *Session) IsNew() bool {
	return s.isNew
}

// SetRemember controls whether the cookie outlives the browser session
func (s *Session) SetRemember(remember bool) {
	s.mu.Lock()
	s.remember = remember
	s.mu.Unlock()
}

func (s *Session) Remember() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remember
}

// AddFlash queues a notification
func (s *Session) AddFlash(kind, message string) {
	s.mu.Lock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
	s.mu.Unlock()
}

// Flashes returns and clears the queued notifications
func (s *Session) Flashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// Destroy marks the session for deletion when it is saved
func (s *Session) Destroy() {
	s.mu.Lock()
	s.destroy = true
	s.mu.Unlock()
}

// Options configure the manager
type Options struct {
	CookieName  string
	TTL         time.Duration
	RememberTTL time.Duration
	Secure      bool
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = "floratio_session"
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.RememberTTL <= 0 {
		o.RememberTTL = 30 * 24 * time.Hour
	}
	return o
}

// Manager loads and saves sessions. When the primary backend fails the
// manager serves from memory and logs a warning.
type Manager struct {
	primary  Backend
	fallback *MemoryBackend
	opts     Options
}

// NewManager creates a manager. A nil primary stores sessions in memory only.
func NewManager(primary Backend, opts Options) *Manager {
	fallback := NewMemoryBackend()
	if primary == nil {
		primary = fallback
	}
	return &Manager{primary: primary, fallback: fallback, opts: opts.withDefaults()}
}

// CookieName is the name of the session cookie
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Load returns the session of r, or a fresh one
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return newSession()
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return newSession()
	}

	data, err := m.load(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Msg("Failed to load session")
		}
		return newSession()
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Error().Err(err).Msg("Failed to decode session, starting a new one")
		return newSession()
	}

	return &Session{
		ID:       cookie.Value,
		Store:    store.New(rec.State),
		remember: rec.Remember,
		flashes:  rec.Flashes,
	}
}

func (m *Manager) load(ctx context.Context, id string) ([]byte, error) {
	data, err := m.primary.Load(ctx, id)
	if err == nil || m.primary == Backend(m.fallback) {
		return data, err
	}
	// Sessions saved during an outage live in memory
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Msg("Session backend unavailable, using memory")
	}
	return m.fallback.Load(ctx, id)
}

// Save persists s and writes the cookie. It must run before the response
// body is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.mu.Lock()
	destroy := s.destroy
	rec := record{Remember: s.remember, Flashes: s.flashes}
	s.mu.Unlock()

	if destroy {
		m.delete(ctx, s.ID)
		http.SetCookie(w, &http.Cookie{
			Name:     m.opts.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	rec.State = s.Store.Snapshot()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ttl := m.opts.TTL
	if rec.Remember {
		ttl = m.opts.RememberTTL
	}

	if err := m.primary.Save(ctx, s.ID, data, ttl); err != nil {
		log.Warn().Err(err).Msg("Session backend unavailable, saving to memory")
		if err := m.fallback.Save(ctx, s.ID, data, ttl); err != nil {
			return err
		}
	}

	cookie := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if rec.Remember {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Renew moves s to a new id, used after login
func (m *Manager) Renew(ctx context.Context, s *Session) {
	old := s.ID
	s.ID = uuid.New().String()
	m.delete(ctx, old)
}

func (m *Manager) delete(ctx context.Context, id string) {
	if err := m.primary.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Msg("Failed to delete session")
	}
	_ = m.fallback.Delete(ctx, id)
}

// HealthCheck pings the primary backend
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.primary.Ping(ctx)
}

// Sweep drops expired sessions held in memory
func (m *Manager) Sweep() int {
	return m.fallback.Sweep()
}

type contextKey struct{}

// NewContext returns ctx carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
