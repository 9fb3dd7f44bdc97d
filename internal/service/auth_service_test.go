package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/mail"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/oauth"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type verificationMailerStub struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *verificationMailerStub) SendVerification(_ context.Context, to string, data mail.VerificationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = data.Link
	return nil
}

func (m *verificationMailerStub) token(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[to]
	require.True(t, ok, "no verification mail for %s", to)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type googleStub struct {
	profile *oauth.Profile
	err     error
}

func (g googleStub) AuthCodeURL(state string) string {
	return "https://accounts.google.test/auth?state=" + state
}
func (g googleStub) Exchange(context.Context, string) (*oauth.Profile, error) {
	return g.profile, g.err
}

type authFixture struct {
	svc    *AuthService
	users  *userRepoStub
	store  *cache.TokenStore
	mailer *verificationMailerStub
	tokens *middleware.TokenManager
	mr     *miniredis.Miniredis
}

func newAuthFixture(t *testing.T, requireVerified bool) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &authFixture{
		users:  newUserRepoStub(),
		store:  cache.NewTokenStore(rdb),
		mailer: &verificationMailerStub{},
		tokens: middleware.NewTokenManager(&config.Config{
			JWTSecret:   "test-secret-that-is-long-enough-123456",
			JWTIssuer:   "inkwell-api",
			JWTAudience: "inkwell-app",
		}),
		mr: mr,
	}
	f.svc = NewAuthService(f.users, f.tokens, f.store, f.mailer, AuthConfig{
		AppURL:                   "http://localhost:8375/",
		RequireEmailVerification: requireVerified,
	})
	return f
}

func TestAuthService_SignUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, true)

	user, err := f.svc.SignUp(ctx, SignUpInput{Name: " Ada ", Email: "Ada@Example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.EmailVerified)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Passw0rdOK")))
	assert.NotEmpty(t, f.mailer.token(t, "ada@example.com"))

	_, err = f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	assertAppError(t, err, models.CodeConflict)

	tests := []struct {
		name  string
		input SignUpInput
	}{
		{"bad email", SignUpInput{Name: "A", Email: "nope", Password: "Passw0rdOK"}},
		{"weak password", SignUpInput{Name: "A", Email: "a@example.com", Password: "password"}},
		{"empty name", SignUpInput{Name: " ", Email: "a@example.com", Password: "Passw0rdOK"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SignUp(ctx, tc.input)
			assertAppError(t, err, models.CodeValidation)
		})
	}
}

func TestAuthService_SignInRequiresVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, true)

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, "ada@example.com", "Passw0rdOK")
	assertAppError(t, err, models.CodeForbidden)

	verified, err := f.svc.VerifyEmail(ctx, f.mailer.token(t, "ada@example.com"))
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	session, err := f.svc.SignIn(ctx, "ada@example.com", "Passw0rdOK")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	claims, err := f.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, verified.ID, claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestAuthService_VerifyEmailTokenIsSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, true)

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)
	token := f.mailer.token(t, "ada@example.com")

	_, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(ctx, token)
	assertAppError(t, err, models.CodeValidation)

	_, err = f.svc.VerifyEmail(ctx, "")
	assertAppError(t, err, models.CodeValidation)
}

func TestAuthService_VerificationTokenExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, true)

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)
	token := f.mailer.token(t, "ada@example.com")

	f.mr.FastForward(25 * time.Hour)

	_, err = f.svc.VerifyEmail(ctx, token)
	assertAppError(t, err, models.CodeValidation)
}

func TestAuthService_SignInFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, false)

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, "ada@example.com", "WrongPass1")
	assertAppError(t, err, models.CodeUnauthorized)

	_, err = f.svc.SignIn(ctx, "ghost@example.com", "Passw0rdOK")
	assertAppError(t, err, models.CodeUnauthorized)

	session, err := f.svc.SignIn(ctx, "ada@example.com", "Passw0rdOK")
	require.NoError(t, err, "unverified sign-in allowed when verification is optional")

	_, err = f.users.Update(ctx, session.User.ID, map[string]any{"status": models.UserBlocked})
	require.NoError(t, err)
	_, err = f.svc.SignIn(ctx, "ada@example.com", "Passw0rdOK")
	assertAppError(t, err, models.CodeForbidden)
}

func TestAuthService_SignOutRevokesToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t, false)

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)
	session, err := f.svc.SignIn(ctx, "ada@example.com", "Passw0rdOK")
	require.NoError(t, err)

	claims, err := f.tokens.Parse(session.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx, claims.ID, claims.ExpiresAt.Time))

	revoked, err := f.store.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	got, err := f.svc.GetSession(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestAuthService_Google(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t, true)
		_, err := f.svc.GoogleAuthURL(ctx)
		assertAppError(t, err, models.CodeUnavailable)
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t, true)
		f.svc.WithGoogle(googleStub{profile: &oauth.Profile{ID: "g1", Email: "g@example.com"}})
		_, err := f.svc.GoogleCallback(ctx, "forged", "code")
		assertAppError(t, err, models.CodeUnauthorized)
	})

	t.Run("creates verified user once", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t, true)
		f.svc.WithGoogle(googleStub{profile: &oauth.Profile{ID: "g1", Email: "grace@example.com", Name: "Grace", Picture: "https://img/g.png"}})

		for i := 0; i < 2; i++ {
			authURL, err := f.svc.GoogleAuthURL(ctx)
			require.NoError(t, err)
			u, err := url.Parse(authURL)
			require.NoError(t, err)

			session, err := f.svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
			require.NoError(t, err)
			assert.True(t, session.User.EmailVerified)
			assert.Equal(t, "Grace", session.User.Name)
		}
		admins, _ := f.users.ListByRole(ctx, models.RoleUser)
		assert.Len(t, admins, 1)
	})

	t.Run("links existing email account", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t, true)
		existing, err := f.svc.SignUp(ctx, SignUpInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rdOK"})
		require.NoError(t, err)
		f.svc.WithGoogle(googleStub{profile: &oauth.Profile{ID: "g2", Email: "ada@example.com", EmailVerified: true}})

		authURL, err := f.svc.GoogleAuthURL(ctx)
		require.NoError(t, err)
		u, _ := url.Parse(authURL)
		session, err := f.svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, session.User.ID)
		require.NotNil(t, session.User.GoogleID)
		assert.Equal(t, "g2", *session.User.GoogleID)
		assert.True(t, session.User.EmailVerified)
	})

	t.Run("exchange failure", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(t, true)
		f.svc.WithGoogle(googleStub{err: errors.New("boom")})
		authURL, err := f.svc.GoogleAuthURL(ctx)
		require.NoError(t, err)
		u, _ := url.Parse(authURL)
		_, err = f.svc.GoogleCallback(ctx, u.Query().Get("state"), "code")
		assertAppError(t, err, models.CodeUnauthorized)
	})
}
