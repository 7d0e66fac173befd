package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

var methane = fluid.Composition{{Fluid: "METHANE", Fraction: 1}}

func engineServer(t *testing.T, secret string, handle func(path string, body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		token, _ := body["Token"].(string)
		assert.Equal(t, makeToken(secret, body), token, "request token")
		code, resp := handle(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFlashDecodesState(t *testing.T) {
	srv := engineServer(t, "s3cret", func(path string, body map[string]any) (int, any) {
		assert.Equal(t, "/flash", path)
		assert.Equal(t, "pt_flash", body["Kind"])
		assert.Equal(t, 10.0, body["X"])
		return http.StatusOK, map[string]any{
			"Success": true,
			"State": map[string]any{
				"phase":       "vapor",
				"density":     map[string]any{"value": 0.42, "unit": "mol/L"},
				"temperature": map[string]any{"value": 25, "unit": "°C"},
			},
		}
	})

	c := NewClient(srv.URL+"/", "s3cret", time.Second)
	s, err := c.Flash(context.Background(), flash.PT, 10, 25, methane)
	require.NoError(t, err)
	assert.Equal(t, flash.PhaseVapor, s.Phase)
	v, ok := s.Get(flash.PropDensity)
	require.True(t, ok)
	assert.InDelta(t, 0.42, v, 1e-12)
}

func TestFlashEngineRejection(t *testing.T) {
	srv := engineServer(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"Success": false, "Message": "no convergence"}
	})
	_, err := NewClient(srv.URL, "", time.Second).Flash(context.Background(), flash.PT, 1, 1, methane)
	var eerr *EngineError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "flash", eerr.Op)
	assert.Contains(t, err.Error(), "no convergence")
}

func TestFlashNullState(t *testing.T) {
	srv := engineServer(t, "", func(string, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"Success": true, "State": nil}
	})
	_, err := NewClient(srv.URL, "", time.Second).Flash(context.Background(), flash.PT, 1, 1, methane)
	assert.ErrorIs(t, err, flash.ErrNoState)
}

func TestStatusError(t *testing.T) {
	srv := engineServer(t, "", func(string, map[string]any) (int, any) {
		return http.StatusBadGateway, map[string]any{"error": "down"}
	})
	_, err := NewClient(srv.URL, "", time.Second).MolarMass(context.Background(), methane)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.Code)
}

func TestMolarMass(t *testing.T) {
	srv := engineServer(t, "k", func(path string, _ map[string]any) (int, any) {
		assert.Equal(t, "/molar_mass", path)
		return http.StatusOK, MolarMassResponse{Success: true, MolarMass: 16.043}
	})
	m, err := NewClient(srv.URL, "k", time.Second).MolarMass(context.Background(), methane)
	require.NoError(t, err)
	assert.Equal(t, 16.043, m)

	bad := engineServer(t, "k", func(string, map[string]any) (int, any) {
		return http.StatusOK, MolarMassResponse{Success: true}
	})
	_, err = NewClient(bad.URL, "k", time.Second).MolarMass(context.Background(), methane)
	assert.Error(t, err)
}

func TestContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, "", time.Minute).Flash(ctx, flash.PT, 1, 1, methane)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenIgnoresOrderAndToken(t *testing.T) {
	c := &Client{Secret: "abc"}
	a := map[string]any{"X": 1.0, "Kind": "pt_flash"}
	signed, err := signRequest("abc", FlashRequest{Kind: "pt_flash", X: 1})
	require.NoError(t, err)
	assert.Equal(t, makeToken(c.Secret, signed), signed["Token"])

	b := map[string]any{"Kind": "pt_flash", "X": 1.0, "Token": "ignored"}
	assert.Equal(t, makeToken("abc", a), makeToken("abc", b))
	assert.NotEqual(t, makeToken("abc", a), makeToken("abd", a))
}
