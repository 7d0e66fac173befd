package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"Flashgrid/internal/auth"
	"Flashgrid/internal/config"
	"Flashgrid/internal/engine/wilson"
	"Flashgrid/internal/repo"
)

func newRouter(t *testing.T, tokenKey string) http.Handler {
	t.Helper()
	cfg := config.FromFile(ini.Empty())
	cfg.Server.TokenKey = tokenKey
	cfg.Server.RateLimit = 1000
	cfg.Server.RateBurst = 1000
	return routerFor(t, cfg)
}

func routerFor(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	router := mux.NewRouter()
	HandleList(router, cfg, wilson.New(), repo.NewMemoryRunDB(10), logger)
	return CORS("*", router)
}

const methaneRequest = `{
	"composition": [{"fluid": "METHANE", "fraction": 1}],
	"variables": {
		"pressure": {"range": {"from": 1, "to": 2}, "resolution": 1},
		"temperature": {"range": {"from": 20, "to": 30}, "resolution": 10}
	},
	"calculation": {"properties": ["density"]}
}`

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFlashRoutes(t *testing.T) {
	h := newRouter(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pt_flash", strings.NewReader(methaneRequest)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"grid_info"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"endpoint":"pt_flash"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pt_flash", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/pt_flash", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIRequiresToken(t *testing.T) {
	h := newRouter(t, "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pt_flash", strings.NewReader(methaneRequest)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := (&auth.Authenv{JWTkey: []byte("secret")}).IssueToken("ops", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/pt_flash", strings.NewReader(methaneRequest))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamIsRateLimited(t *testing.T) {
	cfg := config.FromFile(ini.Empty())
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 1
	h := routerFor(t, cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/flash", nil))
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/flash", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
