package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/mail"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/oauth"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultVerificationTTL = 24 * time.Hour
	oauthStateTTL          = 10 * time.Minute
)

var errBadCredentials = models.NewUnauthorizedError("Invalid email or password")

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID string, role models.Role) (string, *middleware.Claims, error)
}

// AuthTokenStore keeps revocations and one-time tokens.
type AuthTokenStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	SaveVerificationToken(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)
	SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}

// VerificationMailer sends the verify-your-email message.
type VerificationMailer interface {
	SendVerification(ctx context.Context, to string, data mail.VerificationData) error
}

// GoogleProvider runs the OAuth2 code flow against Google.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

// AuthConfig tunes AuthService.
type AuthConfig struct {
	AppURL                   string
	RequireEmailVerification bool
	VerificationTTL          time.Duration
}

type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	store  AuthTokenStore
	mailer VerificationMailer
	google GoogleProvider
	cfg    AuthConfig
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
}

// Session is a signed-in user together with the bearer token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// NewAuthService wires sign-up and sign-in. store and mailer may be nil; without
// a store tokens cannot be revoked and email verification is unavailable.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, store AuthTokenStore, mailer VerificationMailer, cfg AuthConfig) *AuthService {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = defaultVerificationTTL
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &AuthService{users: users, tokens: tokens, store: store, mailer: mailer, cfg: cfg}
}

// WithGoogle enables Google sign-in.
func (s *AuthService) WithGoogle(g GoogleProvider) *AuthService {
	s.google = g
	return s
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil && s.store != nil
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewFieldValidationError("name", err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewFieldValidationError("email", err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewFieldValidationError("password", err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
		Status:   models.UserActive,
		Phone:    in.Phone,
	}
	err = s.users.Create(ctx, user)
	observability.AuthEvents.WithLabelValues("sign_up", observability.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// ResendVerification issues a fresh verification link for an unverified account.
// Unknown and already verified addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}
	s.sendVerification(ctx, user)
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	if s.store == nil {
		return
	}
	token := uuid.NewString()
	if err := s.store.SaveVerificationToken(ctx, token, user.ID, s.cfg.VerificationTTL); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "verification token not stored",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
		return
	}
	if s.mailer == nil {
		return
	}
	err := s.mailer.SendVerification(ctx, user.Email, mail.VerificationData{
		Name:      user.Name,
		Link:      s.cfg.AppURL + "/api/auth/verify-email?token=" + token,
		ExpiresIn: s.cfg.VerificationTTL.String(),
	})
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "verification mail failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
	}
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password == "" {
		observability.AuthEvents.WithLabelValues("sign_in", "bad_credentials").Inc()
		return nil, errBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		observability.AuthEvents.WithLabelValues("sign_in", "bad_credentials").Inc()
		return nil, errBadCredentials
	}
	if user.Status != models.UserActive {
		observability.AuthEvents.WithLabelValues("sign_in", "blocked").Inc()
		return nil, models.NewForbiddenError("Account is blocked")
	}
	if s.cfg.RequireEmailVerification && !user.EmailVerified {
		observability.AuthEvents.WithLabelValues("sign_in", "unverified").Inc()
		return nil, models.NewForbiddenError("Email address is not verified")
	}
	return s.issue(user, "sign_in")
}

func (s *AuthService) issue(user *models.User, event string) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		observability.AuthEvents.WithLabelValues(event, "error").Inc()
		return nil, models.NewInternalError(err)
	}
	observability.AuthEvents.WithLabelValues(event, "ok").Inc()
	session := &Session{Token: token, User: user}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewFieldValidationError("token", "token is required")
	}
	if s.store == nil {
		return nil, models.NewUnavailableError("Email verification is unavailable")
	}
	userID, err := s.store.ConsumeVerificationToken(ctx, token)
	if errors.Is(err, cache.ErrTokenNotFound) {
		observability.AuthEvents.WithLabelValues("verify_email", "invalid").Inc()
		return nil, models.NewFieldValidationError("token", "Invalid or expired verification token")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user, err := s.users.Update(ctx, userID, map[string]any{"email_verified": true})
	observability.AuthEvents.WithLabelValues("verify_email", observability.Result(err)).Inc()
	return user, err
}

// SignOut revokes the token id until its natural expiry.
func (s *AuthService) SignOut(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.store == nil || jti == "" {
		return nil
	}
	if err := s.store.Revoke(ctx, jti, expiresAt); err != nil {
		return models.NewInternalError(err)
	}
	observability.AuthEvents.WithLabelValues("sign_out", "ok").Inc()
	return nil
}

// GetSession loads the account behind an authenticated request.
func (s *AuthService) GetSession(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GoogleAuthURL starts the OAuth flow and remembers its state.
func (s *AuthService) GoogleAuthURL(ctx context.Context) (string, error) {
	if !s.GoogleEnabled() {
		return "", models.NewUnavailableError("Google sign-in is not configured")
	}
	state := uuid.NewString()
	if err := s.store.SaveOAuthState(ctx, state, oauthStateTTL); err != nil {
		return "", models.NewInternalError(err)
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback finishes the OAuth flow. Accounts are matched by Google id,
// then by email; first-time users are created verified.
func (s *AuthService) GoogleCallback(ctx context.Context, state, code string) (*Session, error) {
	if !s.GoogleEnabled() {
		return nil, models.NewUnavailableError("Google sign-in is not configured")
	}
	ok, err := s.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		observability.AuthEvents.WithLabelValues("google", "bad_state").Inc()
		return nil, models.NewUnauthorizedError("Invalid or expired OAuth state")
	}

	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		observability.AuthEvents.WithLabelValues("google", "exchange_failed").Inc()
		observability.GlobalLogger.WarnContext(ctx, "google exchange failed", slog.String("error", err.Error()))
		return nil, models.NewUnauthorizedError("Google sign-in failed")
	}

	user, err := s.resolveGoogleUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserActive {
		return nil, models.NewForbiddenError("Account is blocked")
	}
	return s.issue(user, "google")
}

func (s *AuthService) resolveGoogleUser(ctx context.Context, p *oauth.Profile) (*models.User, error) {
	user, err := s.users.GetByGoogleID(ctx, p.ID)
	if err != nil || user != nil {
		return user, err
	}

	user, err = s.users.GetByEmail(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	googleID := p.ID
	if user != nil {
		changes := map[string]any{"google_id": &googleID}
		if p.EmailVerified {
			changes["email_verified"] = true
		}
		if user.Image == nil && p.Picture != "" {
			changes["image"] = &p.Picture
		}
		return s.users.Update(ctx, user.ID, changes)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	user = &models.User{
		Name:          name,
		Email:         p.Email,
		Role:          models.RoleUser,
		Status:        models.UserActive,
		EmailVerified: true,
		GoogleID:      &googleID,
	}
	if p.Picture != "" {
		user.Image = &p.Picture
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
