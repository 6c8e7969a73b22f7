package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/queue"
	"github.com/simonkvalheim/hm9-console/internal/tokenstore"
)

// MaxTokenTTL bounds how long a session outlives its login, matching the cookie lifetime
const MaxTokenTTL = 7 * 24 * time.Hour

// Manager creates, loads and ends sessions. Sessions are kept in memory per
// process; the token store is the source of truth for whether one is valid.
type Manager struct {
	api    *apiclient.Client
	tokens tokenstore.Store
	notes  queue.Queue
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	token   string
	session *Session
}

// NewManager creates a new Manager. api must not carry a token.
func NewManager(api *apiclient.Client, tokens tokenstore.Store, notes queue.Queue, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:      api,
		tokens:   tokens,
		notes:    notes,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}
}

// Login exchanges credentials for a token and stores it under a new session id
func (m *Manager) Login(ctx context.Context, req model.LoginRequest) (string, time.Time, error) {
	if err := req.Validate(); err != nil {
		return "", time.Time{}, err
	}

	resp, err := m.api.Login(ctx, req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login failed: %w", err)
	}

	ttl := tokenTTL(resp.Token, m.now())
	if ttl <= 0 {
		return "", time.Time{}, model.ErrNotAuthenticated
	}

	id := uuid.NewString()
	if err := m.tokens.Set(ctx, id, resp.Token, ttl); err != nil {
		return "", time.Time{}, err
	}

	m.logger.Info("session created", "session", id, "ttl", ttl)
	return id, m.now().Add(ttl), nil
}

// Load returns the session for id, starting it if this process has not seen it yet
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	token, err := m.tokens.Get(ctx, id)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			m.drop(id)
			return nil, model.ErrNotAuthenticated
		}
		return nil, err
	}

	m.mu.Lock()
	live, ok := m.sessions[id]
	if ok && live.token == token {
		m.mu.Unlock()
		live.session.touch()
		return live.session, nil
	}

	var stale *Session
	if ok {
		stale = live.session
	}
	s := newSession(id, m.api.WithToken(token), m.notes, m.opts, m.logger)
	m.sessions[id] = &liveSession{token: token, session: s}
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	s.start()
	return s, nil
}

// Logout ends the session and forgets its token
func (m *Manager) Logout(ctx context.Context, id string) error {
	m.drop(id)

	if err := m.tokens.Delete(ctx, id); err != nil {
		return err
	}
	if err := m.notes.Discard(ctx, id); err != nil {
		m.logger.Warn("failed to discard notifications", "session", id, "error", err)
	}

	m.logger.Info("session ended", "session", id)
	return nil
}

// Sweep closes sessions idle for longer than maxIdle. Their tokens stay
// valid, so the next request simply starts them again.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, live := range m.sessions {
		if live.session.idleSince().Before(cutoff) {
			idle = append(idle, live.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Shutdown closes every session, saving pending edits
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*liveSession)
	m.mu.Unlock()

	for _, live := range all {
		live.session.Close()
	}
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	live, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		live.session.Close()
	}
}

// tokenTTL returns how long token stays usable: until its exp claim when it
// carries one, never longer than MaxTokenTTL. The signature is not checked;
// the banking API does that on every request.
func tokenTTL(token string, now time.Time) time.Duration {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return MaxTokenTTL
	}

	ttl := claims.ExpiresAt.Time.Sub(now)
	if ttl > MaxTokenTTL {
		return MaxTokenTTL
	}
	return ttl
}
