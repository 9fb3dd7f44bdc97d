// Package oauth implements the Google OAuth2 code flow used for social sign-in.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"inkwell/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Profile is the subset of the Google userinfo document we keep.
type Profile struct {
	ID            string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Google exchanges authorization codes and loads the signed-in profile.
type Google struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewGoogle returns nil when no client credentials are configured.
func NewGoogle(cfg *config.Config) *Google {
	if !cfg.GoogleOAuthEnabled() {
		return nil
	}
	return &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/api/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: defaultUserInfoURL,
	}
}

// NewGoogleWithEndpoint points the flow at custom token and userinfo URLs.
func NewGoogleWithEndpoint(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, userInfoURL string) *Google {
	return &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and fetches the user's profile with it.
func (g *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.ID == "" || p.Email == "" {
		return nil, fmt.Errorf("userinfo missing subject or email")
	}
	return &p, nil
}
