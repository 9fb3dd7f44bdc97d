// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fiber locals written by the auth middleware.
const (
	LocalUserID   = "userID"
	LocalUserRole = "userRole"
	LocalTokenID  = "tokenID"
	LocalTokenExp = "tokenExp"
)

// Claims is the JWT payload issued at sign-in.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenManager builds a TokenManager from configuration.
func NewTokenManager(cfg *config.Config) *TokenManager {
	ttl := time.Duration(cfg.JWTTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a token for the user. The returned claims carry the jti and expiry.
func (m *TokenManager) Issue(userID string, role models.Role) (string, *Claims, error) {
	if len(m.secret) == 0 {
		return "", nil, fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserLookup loads the account behind a token subject.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Identity is the authenticated caller as seen by handlers and services.
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Authenticator resolves the caller identity from the Authorization header.
type Authenticator struct {
	tokens  *TokenManager
	users   UserLookup
	revoked RevocationChecker
}

// NewAuthenticator wires token parsing, account lookup and revocation checks.
// revoked may be nil when Redis is unavailable.
func NewAuthenticator(tokens *TokenManager, users UserLookup, revoked RevocationChecker) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, revoked: revoked}
}

// errNoCredentials means the request carried no Authorization header at all.
var errNoCredentials = models.NewUnauthorizedError("Authorization header required")

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", errNoCredentials
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", models.NewUnauthorizedError("Invalid authorization header format")
	}
	return parts[1], nil
}

// Identify resolves and stores the caller identity on the request.
func (a *Authenticator) Identify(c *fiber.Ctx) (*Identity, error) {
	if id, ok := IdentityFrom(c); ok {
		return id, nil
	}

	raw, err := bearerToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := a.tokens.Parse(raw)
	if err != nil {
		AuthFailures.WithLabelValues("invalid_token").Inc()
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	ctx := c.UserContext()
	if a.revoked != nil && claims.ID != "" {
		revoked, rerr := a.revoked.IsRevoked(ctx, claims.ID)
		if rerr != nil {
			Logger.WarnContext(ctx, "token revocation check failed, allowing request", slog.String("error", rerr.Error()))
		} else if revoked {
			AuthFailures.WithLabelValues("revoked").Inc()
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			AuthFailures.WithLabelValues("unknown_user").Inc()
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}
	if user.Status != models.UserActive {
		AuthFailures.WithLabelValues("blocked").Inc()
		return nil, models.NewForbiddenError("Account is not active")
	}

	id := &Identity{UserID: user.ID, Role: user.Role}
	c.Locals(LocalUserID, id.UserID)
	c.Locals(LocalUserRole, id.Role)
	c.Locals(LocalTokenID, claims.ID)
	if claims.ExpiresAt != nil {
		c.Locals(LocalTokenExp, claims.ExpiresAt.Time)
	}
	c.SetUserContext(context.WithValue(ctx, UserIDKey, id.UserID))
	return id, nil
}

// AuthRequired enforces authentication for protected routes.
func (a *Authenticator) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := a.Identify(c); err != nil {
			return models.RespondWithError(c, models.StatusForError(err), err)
		}
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "" {
			if _, err := a.Identify(c); err != nil && models.ErrorCode(err) == models.CodeInternal {
				return models.RespondWithError(c, fiber.StatusInternalServerError, err)
			}
		}
		return c.Next()
	}
}

// Guard admits the request only when the policy table allows op for the caller.
func (a *Authenticator) Guard(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsPublic(op) {
			return c.Next()
		}

		id, err := a.Identify(c)
		if err != nil {
			return models.RespondWithError(c, models.StatusForError(err), err)
		}
		if err := Authorize(id, op); err != nil {
			AuthFailures.WithLabelValues("forbidden").Inc()
			Logger.WarnContext(c.UserContext(), "operation denied",
				slog.String("operation", string(op)),
				slog.String("role", string(id.Role)),
			)
			return models.RespondWithError(c, models.StatusForError(err), err)
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(c *fiber.Ctx) (*Identity, bool) {
	uid, ok := c.Locals(LocalUserID).(string)
	if !ok || uid == "" {
		return nil, false
	}
	role, _ := c.Locals(LocalUserRole).(models.Role)
	return &Identity{UserID: uid, Role: role}, true
}
