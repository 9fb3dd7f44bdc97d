package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"inkwell/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewGoogle_DisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewGoogle(&config.Config{}))

	g := NewGoogle(&config.Config{GoogleClientID: "id", GoogleClientSecret: "secret", AppURL: "http://localhost:8375"})
	require.NotNil(t, g)

	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "http://localhost:8375/api/auth/google/callback", u.Query().Get("redirect_uri"))
}

func TestGoogle_Exchange(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{
		"sub": "g-1", "email": "ada@example.com", "email_verified": true, "name": "Ada", "picture": "https://img/a.png",
	})
	g := NewGoogleWithEndpoint("id", "secret", "http://cb", oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}, srv.URL+"/userinfo")

	p, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "g-1", p.ID)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.True(t, p.EmailVerified)

	_, err = g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogle_ExchangeRejectsIncompleteProfile(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"sub": "g-2"})
	g := NewGoogleWithEndpoint("id", "secret", "http://cb", oauth2.Endpoint{TokenURL: srv.URL + "/token"}, srv.URL+"/userinfo")

	_, err := g.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
