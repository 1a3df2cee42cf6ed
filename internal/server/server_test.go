package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradejournal-api/internal/config"
	"github.com/ksred/tradejournal-api/internal/database/dbtest"
	"github.com/ksred/tradejournal-api/internal/database/migrations"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "server-test-secret",
		TokenTTL:      time.Hour,
		RateLimitAuth: 600,
		RateLimitAPI:  6000,
		DemoOwnerID:   "demo-owner",
	}
}

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	require.NoError(t, migrations.Run(db))
	return New(cfg, db, nil)
}

func TestJournalFlow(t *testing.T) {
	srv := newServer(t, testConfig())
	c := &client{t: t, router: srv.Router}

	status, env := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "trader",
		"email":    "trader@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status)
	var registered struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, env, &registered)

	status, _ = c.do(http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "trader", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, env, &login)
	c.token = login.AccessToken

	status, env = c.do(http.MethodPost, "/api/accounts", map[string]interface{}{
		"account_name":    "Main",
		"broker_name":     "IC Markets",
		"initial_balance": 10000,
	})
	require.Equal(t, http.StatusCreated, status)
	var account struct {
		ID             string  `json:"id"`
		CurrentBalance float64 `json:"current_balance"`
	}
	decode(t, env, &account)

	status, env = c.do(http.MethodPost, "/api/trades?account_id="+account.ID, map[string]interface{}{
		"entry_price":   2000,
		"position_size": 2,
		"direction":     "long",
	})
	require.Equal(t, http.StatusCreated, status)
	var trade struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, env, &trade)
	assert.Equal(t, "open", trade.Status)

	status, env = c.do(http.MethodPatch, fmt.Sprintf("/api/trades/%s/close", trade.ID), map[string]interface{}{"exit_price": 2015})
	require.Equal(t, http.StatusOK, status)
	var closed struct {
		Result float64 `json:"result"`
	}
	decode(t, env, &closed)
	assert.Equal(t, 30.0, closed.Result)

	status, _ = c.do(http.MethodPatch, fmt.Sprintf("/api/trades/%s/close", trade.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = c.do(http.MethodGet, "/api/accounts/"+account.ID, nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, env, &account)
	assert.Equal(t, 10030.0, account.CurrentBalance)

	status, env = c.do(http.MethodGet, "/api/analytics/summary?account_id="+account.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var summary struct {
		ClosedTrades  int     `json:"closed_trades"`
		NetProfitLoss float64 `json:"net_profit_loss"`
	}
	decode(t, env, &summary)
	assert.Equal(t, 1, summary.ClosedTrades)
	assert.Equal(t, 30.0, summary.NetProfitLoss)

	status, _ = c.do(http.MethodDelete, "/api/trades/"+trade.ID, nil)
	require.Equal(t, http.StatusOK, status)

	_, env = c.do(http.MethodGet, "/api/accounts/"+account.ID, nil)
	decode(t, env, &account)
	assert.Equal(t, 10000.0, account.CurrentBalance)

	status, _ = c.do(http.MethodPost, "/api/calculator/profit-loss", map[string]interface{}{
		"direction": "short", "entry_price": 2000, "exit_price": 1990, "position_size": 1,
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestOwnersAreIsolated(t *testing.T) {
	srv := newServer(t, testConfig())
	alice := &client{t: t, router: srv.Router}
	bob := &client{t: t, router: srv.Router}

	for name, c := range map[string]*client{"alice": alice, "bob": bob} {
		status, env := c.do(http.MethodPost, "/api/auth/register", map[string]string{
			"username": name,
			"email":    name + "@example.com",
			"password": "correct-horse",
		})
		require.Equal(t, http.StatusCreated, status)
		var res struct {
			AccessToken string `json:"access_token"`
		}
		decode(t, env, &res)
		c.token = res.AccessToken
	}

	_, env := alice.do(http.MethodPost, "/api/accounts", map[string]interface{}{
		"account_name": "Alice", "broker_name": "Pepperstone", "initial_balance": 500,
	})
	var account struct {
		ID string `json:"id"`
	}
	decode(t, env, &account)

	status, _ := bob.do(http.MethodGet, "/api/accounts/"+account.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = bob.do(http.MethodPost, "/api/trades?account_id="+account.ID, map[string]interface{}{
		"entry_price": 1, "position_size": 1, "direction": "long",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDemoMode(t *testing.T) {
	cfg := testConfig()
	cfg.DemoMode = true
	srv := newServer(t, cfg)
	c := &client{t: t, router: srv.Router}

	status, env := c.do(http.MethodPost, "/api/accounts", map[string]interface{}{
		"account_name": "Demo", "broker_name": "Paper", "initial_balance": 1000,
	})
	require.Equal(t, http.StatusCreated, status)
	var account struct {
		UserID string `json:"user_id"`
	}
	decode(t, env, &account)
	assert.Equal(t, "demo-owner", account.UserID)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAuth = 2
	srv := newServer(t, cfg)
	c := &client{t: t, router: srv.Router}

	login := map[string]string{"username": "nobody", "password": "whatever-pass"}
	status, _ := c.do(http.MethodPost, "/api/auth/login", login)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := c.do(http.MethodPost, "/api/auth/login", login)
	assert.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestPublicEndpoints(t *testing.T) {
	srv := newServer(t, testConfig())
	c := &client{t: t, router: srv.Router}

	status, _ := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = c.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)

	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "journal_http_requests_total")
}
