package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonkvalheim/hm9-console/internal/model"
	"github.com/simonkvalheim/hm9-console/internal/queue"
	"github.com/simonkvalheim/hm9-console/internal/tokenstore"
)

func newTestManager(t *testing.T, bank *fakeBank) (*Manager, *tokenstore.MemoryStore, *queue.MemoryQueue) {
	t.Helper()
	tokens := tokenstore.NewMemoryStore()
	notes := queue.NewMemoryQueue()
	m := NewManager(bank.client(), tokens, notes, testOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(m.Shutdown)
	return m, tokens, notes
}

func TestManager_LoginStoresToken(t *testing.T) {
	bank := newFakeBank(t)
	m, tokens, _ := newTestManager(t, bank)

	id, expires, err := m.Login(context.Background(), model.LoginRequest{Username: "ada", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	token, err := tokens.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	login := bank.calls(http.MethodPost, "/auth/login")
	require.Len(t, login, 1)
	assert.Empty(t, login[0].Auth, "login must not send a bearer token")
}

func TestManager_LoginValidatesCredentials(t *testing.T) {
	bank := newFakeBank(t)
	m, _, _ := newTestManager(t, bank)

	tests := []struct {
		name    string
		req     model.LoginRequest
		wantErr error
	}{
		{name: "missing username", req: model.LoginRequest{Password: "x"}, wantErr: model.ErrUsernameRequired},
		{name: "blank username", req: model.LoginRequest{Username: "  ", Password: "x"}, wantErr: model.ErrUsernameRequired},
		{name: "missing password", req: model.LoginRequest{Username: "ada"}, wantErr: model.ErrPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Login(context.Background(), tt.req)
			if err != tt.wantErr {
				t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	assert.Empty(t, bank.calls(http.MethodPost, "/auth/login"))
}

func TestManager_LoadReusesSession(t *testing.T) {
	bank := newFakeBank(t)
	m, _, _ := newTestManager(t, bank)
	ctx := context.Background()

	id, _, err := m.Login(ctx, model.LoginRequest{Username: "ada", Password: "secret"})
	require.NoError(t, err)

	first, err := m.Load(ctx, id)
	require.NoError(t, err)
	second, err := m.Load(ctx, id)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.Eventually(t, func() bool { _, ok := first.User(); return ok }, waitFor, tick)
	assert.Len(t, bank.calls(http.MethodGet, "/user/profile"), 1)
}

func TestManager_LoadUnknownSession(t *testing.T) {
	bank := newFakeBank(t)
	m, _, _ := newTestManager(t, bank)

	_, err := m.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
}

func TestManager_LogoutForgetsToken(t *testing.T) {
	bank := newFakeBank(t)
	m, tokens, notes := newTestManager(t, bank)
	ctx := context.Background()

	id, _, err := m.Login(ctx, model.LoginRequest{Username: "ada", Password: "secret"})
	require.NoError(t, err)
	s, err := m.Load(ctx, id)
	require.NoError(t, err)
	s.Notify(ctx, queue.LevelInfo, "hello", "world")

	require.NoError(t, m.Logout(ctx, id))

	_, err = tokens.Get(ctx, id)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = m.Load(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)

	pending, err := notes.Drain(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestManager_SweepClosesIdleSessions(t *testing.T) {
	bank := newFakeBank(t)
	m, _, _ := newTestManager(t, bank)
	ctx := context.Background()

	id, _, err := m.Login(ctx, model.LoginRequest{Username: "ada", Password: "secret"})
	require.NoError(t, err)
	first, err := m.Load(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(time.Hour))

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, m.Sweep(time.Hour))

	// The token is still valid, so the session starts again
	second, err := m.Load(ctx, id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestTokenTTL(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  time.Duration
	}{
		{name: "not a jwt", token: "opaque", want: MaxTokenTTL},
		{name: "expires in an hour", token: testToken(t, time.Hour), want: time.Hour},
		{name: "expires after the cap", token: testToken(t, 30*24*time.Hour), want: MaxTokenTTL},
		{name: "already expired", token: testToken(t, -time.Hour), want: -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenTTL(tt.token, now)
			if diff := got - tt.want; diff > 5*time.Second || diff < -5*time.Second {
				t.Errorf("tokenTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCookieConfig(t *testing.T) {
	cfg := CookieConfig{Name: "sid", Domain: "example.com", Secure: true}
	expires := time.Now().Add(time.Hour)

	rec := httptest.NewRecorder()
	cfg.Set(rec, "abc", expires)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.Equal(t, "example.com", cookies[0].Domain)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	id, ok := cfg.Read(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	rec = httptest.NewRecorder()
	cfg.Clear(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	_, ok = cfg.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
