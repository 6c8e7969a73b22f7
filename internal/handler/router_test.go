package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/queue"
	"github.com/simonkvalheim/hm9-console/internal/session"
	"github.com/simonkvalheim/hm9-console/internal/tokenstore"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// bank is a minimal banking API for end-to-end handler tests
type bank struct {
	mu            sync.Mutex
	profile       string
	profileStatus int
	calls         map[string]int
	bodies        map[string]string
}

func (b *bank) hit(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	defer b.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	b.calls[key]++
	b.bodies[key] = string(body)
}

func (b *bank) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *bank) body(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

func (b *bank) setProfile(status int, profile string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileStatus = status
	b.profile = profile
}

func (b *bank) router() http.Handler {
	reply := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, body)
		}
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.hit(r)
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/auth/login", reply(http.StatusOK, `{"token":"opaque-token"}`))
	r.Get("/user/profile", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status, profile := b.profileStatus, b.profile
		b.mu.Unlock()
		reply(status, profile)(w, r)
	})
	r.Get("/wallet", reply(http.StatusOK, `{"_id":"w1","balance":250,"userId":"u1"}`))
	r.Get("/wallet/transactions/{id}", reply(http.StatusOK, `{"txts":[],"total":0}`))
	r.Post("/withdraws", reply(http.StatusCreated, `{"_id":"wd1","status":"pending"}`))
	r.Get("/withdraws/{id}", reply(http.StatusOK, `{
		"_id":"wd1","amount":1200.5,"accountHolder":"Ada Lovelace","bankName":"First Bank",
		"accountNumber":"1234567890","routingNumber":"021000021","accountType":"checking",
		"status":"pending","createdAt":"2025-03-05T14:30:00Z"}`))
	r.Get("/user/all", reply(http.StatusOK, `{"page":1,"limit":10,"totalPage":1,"total":1,"data":[{"_id":"u2"}]}`))
	r.Get("/crypto-deposits/latest", reply(http.StatusOK, `[{"_id":"d1","status":"Pending"}]`))
	r.Patch("/crypto-deposits/update-status/{id}", reply(http.StatusOK, `{}`))
	r.Get("/admin/config/wallet-address/{crypto}", reply(http.StatusOK, `"bc1-address"`))
	r.Post("/crypto-deposits", reply(http.StatusCreated, `{}`))
	return r
}

const (
	adminProfile     = `{"_id":"u1","firstName":"Ada","isAdmin":true,"accountStatus":"active"}`
	userProfile      = `{"_id":"u1","firstName":"Ada","isAdmin":false,"accountStatus":"active"}`
	suspendedProfile = `{"_id":"u1","firstName":"Ada","isAdmin":false,"accountStatus":"suspended"}`

	withdrawBody = `{
		"amount":"100.50", "accountHolder":" Ada Lovelace ", "bankName":"First Bank",
		"accountNumber":"1234 5678 90", "routingNumber":"021000021", "accountType":"checking",
		"notes":"  "}`
)

type console struct {
	bank   *bank
	server *httptest.Server
	client *http.Client
}

func newConsole(t *testing.T, profile string) *console {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := &bank{profile: profile, profileStatus: http.StatusOK, calls: map[string]int{}, bodies: map[string]string{}}
	bankServer := httptest.NewServer(b.router())
	t.Cleanup(bankServer.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: bankServer.URL, Logger: logger})
	require.NoError(t, err)

	opts := session.Options{
		DebounceDelay:     5 * time.Millisecond,
		DepositSaveDelay:  20 * time.Millisecond,
		SettingsSaveDelay: 20 * time.Millisecond,
	}
	manager := session.NewManager(api, tokenstore.NewMemoryStore(), queue.NewMemoryQueue(), opts, logger)
	t.Cleanup(manager.Shutdown)

	router := NewRouter(RouterConfig{
		Sessions: manager,
		Cookie:   session.DefaultCookieConfig(),
		CORS:     middleware.DefaultCORSConfig(),
		Location: time.UTC,
		Logger:   logger,
		Health: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &console{bank: b, server: server, client: &http.Client{Jar: jar}}
}

func (c *console) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (c *console) login(t *testing.T) {
	t.Helper()
	resp, body := c.do(t, http.MethodPost, "/auth/login", `{"username":"ada","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func TestRouter_Health(t *testing.T) {
	c := newConsole(t, userProfile)

	resp, body := c.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
}

func TestRouter_LoginLogout(t *testing.T) {
	c := newConsole(t, userProfile)

	resp, _ := c.do(t, http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := c.do(t, http.MethodPost, "/auth/login", `{"username":"ada","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"user"`)

	resp, body = c.do(t, http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"_id":"u1"`)

	resp, _ = c.do(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(t, http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_LoginRequiresCredentials(t *testing.T) {
	c := newConsole(t, userProfile)

	resp, body := c.do(t, http.MethodPost, "/auth/login", `{"username":"ada"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "password")
	assert.Equal(t, 0, c.bank.count("POST /auth/login"))
}

func TestRouter_WithdrawValidationFailure(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	resp, body := c.do(t, http.MethodPost, "/withdraws", `{
		"amount":"", "accountHolder":"", "bankName":"First Bank",
		"accountNumber":"12ab", "routingNumber":"12", "accountType":"checking"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var got struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "Amount must be greater than 0", got.Fields["amount"])
	assert.Equal(t, "Account holder name is required", got.Fields["accountHolder"])
	assert.Equal(t, "Account number must contain only numbers", got.Fields["accountNumber"])
	assert.NotContains(t, got.Fields, "bankName")
	assert.Equal(t, 0, c.bank.count("POST /withdraws"))
}

func TestRouter_WithdrawSubmitAndReceipt(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	resp, body := c.do(t, http.MethodPost, "/withdraws", withdrawBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.JSONEq(t, `{"_id":"wd1","location":"/withdraws/wd1"}`, body)
	assert.Equal(t, "/withdraws/wd1", resp.Header.Get("Location"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.bank.body("POST /withdraws")), &sent))
	assert.Equal(t, "Ada Lovelace", sent["accountHolder"])
	assert.Equal(t, "1234567890", sent["accountNumber"])
	assert.Equal(t, 100.5, sent["amount"])
	assert.NotContains(t, sent, "notes")

	resp, body = c.do(t, http.MethodGet, "/withdraws/wd1/receipt", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="withdrawal-receipt-wd1.txt"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "Amount: $1,200.50")
	assert.Contains(t, body, "Account Number: ******7890")
	assert.Contains(t, body, "Date: March 5, 2025, 02:30 PM")
}

func TestRouter_Transfer(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	resp, _ := c.do(t, http.MethodPost, "/transfers", `{"toUserId":"u2","amount":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(t, http.MethodPost, "/transfers", `{"amount":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, c.bank.count("POST /banking-system/transfer"))
}

func TestRouter_WalletState(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	require.Eventually(t, func() bool {
		_, body := c.do(t, http.MethodGet, "/wallet", "")
		return strings.Contains(body, `"balance":250`) && strings.Contains(body, `"loading":false`)
	}, waitFor, tick)

	resp, body := c.do(t, http.MethodGet, "/wallet/transactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"txts":[],"total":0}`, body)
}

func TestRouter_SuspendedAccount(t *testing.T) {
	c := newConsole(t, suspendedProfile)
	c.login(t)

	resp, _ := c.do(t, http.MethodGet, "/wallet", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.do(t, http.MethodPost, "/withdraws", `{}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.do(t, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RevokedTokenEndsSession(t *testing.T) {
	c := newConsole(t, userProfile)
	c.bank.setProfile(http.StatusUnauthorized, `{"message":"jwt expired"}`)
	c.login(t)

	resp, _ := c.do(t, http.MethodGet, "/wallet", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.bank.setProfile(http.StatusOK, userProfile)
	resp, _ = c.do(t, http.MethodGet, "/wallet", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "session stays ended")
}

func TestRouter_ProfileChangesApplyMidSession(t *testing.T) {
	t.Run("suspended user loses access", func(t *testing.T) {
		c := newConsole(t, userProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodGet, "/wallet", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		c.bank.setProfile(http.StatusOK, suspendedProfile)

		resp, _ = c.do(t, http.MethodGet, "/wallet", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = c.do(t, http.MethodPost, "/withdraws", withdrawBody)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, c.bank.count("POST /withdraws"), "withdrawal must not reach the bank")
	})

	t.Run("demoted admin loses admin routes", func(t *testing.T) {
		c := newConsole(t, adminProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodGet, "/admin/deposits", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		c.bank.setProfile(http.StatusOK, userProfile)

		resp, _ = c.do(t, http.MethodGet, "/admin/deposits", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = c.do(t, http.MethodGet, "/wallet", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("revoked token mid-session", func(t *testing.T) {
		c := newConsole(t, userProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodGet, "/wallet", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		c.bank.setProfile(http.StatusUnauthorized, `{"message":"jwt expired"}`)

		resp, _ = c.do(t, http.MethodGet, "/wallet", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("transient profile failure keeps cached profile", func(t *testing.T) {
		c := newConsole(t, userProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodGet, "/wallet", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		c.bank.setProfile(http.StatusServiceUnavailable, `{"message":"maintenance"}`)

		resp, _ = c.do(t, http.MethodGet, "/wallet", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRouter_AdminRoutes(t *testing.T) {
	t.Run("non-admin is forbidden", func(t *testing.T) {
		c := newConsole(t, userProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodGet, "/admin/users", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("user listing", func(t *testing.T) {
		c := newConsole(t, adminProfile)
		c.login(t)

		require.Eventually(t, func() bool {
			_, body := c.do(t, http.MethodGet, "/admin/users?page=1&search=ada", "")
			return strings.Contains(body, `"_id":"u2"`)
		}, waitFor, tick)
	})

	t.Run("deposit status is autosaved", func(t *testing.T) {
		c := newConsole(t, adminProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodPut, "/admin/deposits/d1/status", `{"status":"Lost"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = c.do(t, http.MethodPut, "/admin/deposits/d1/status", `{"status":"Confirmed"}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		require.Eventually(t, func() bool {
			return c.bank.count("PATCH /crypto-deposits/update-status/d1") == 1
		}, waitFor, tick)
	})

	t.Run("address edit before settings load", func(t *testing.T) {
		c := newConsole(t, adminProfile)
		c.login(t)

		resp, _ := c.do(t, http.MethodPut, "/admin/config/wallets/bitcoin/address", `{"address":"bc1"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, _ = c.do(t, http.MethodPut, "/admin/config/wallets/dogecoin/address", `{"address":"D1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRouter_Deposits(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	resp, body := c.do(t, http.MethodPost, "/crypto-deposits", `{"crypto":"BTC","amount":"650"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Contains(t, body, `"amountInCrypto":"0.01000000"`)
	assert.Contains(t, c.bank.body("POST /crypto-deposits"), `"cryptoWalletSymbol":"BTC"`)

	resp, body = c.do(t, http.MethodGet, "/crypto-deposits/address/bitcoin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"address":"bc1-address"`)
}

func TestRouter_NotificationsStartEmpty(t *testing.T) {
	c := newConsole(t, userProfile)
	c.login(t)

	resp, body := c.do(t, http.MethodGet, "/notifications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}
