package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService carries the account administration used by the admin CLI and
// server bootstrap.
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) byEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", strings.ToLower(strings.TrimSpace(email)))
	}
	return user, nil
}

// SetRole changes the role of the account registered under email.
func (s *UserService) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewFieldValidationError("role", "role must be ADMIN or USER")
	}
	user, err := s.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	return s.userRepo.Update(ctx, user.ID, map[string]any{"role": role})
}

// SetStatus blocks or unblocks the account registered under email.
func (s *UserService) SetStatus(ctx context.Context, email string, status models.UserStatus) (*models.User, error) {
	if status != models.UserActive && status != models.UserBlocked {
		return nil, models.NewFieldValidationError("status", "status must be ACTIVE or BLOCKED")
	}
	user, err := s.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Status == status {
		return user, nil
	}
	return s.userRepo.Update(ctx, user.ID, map[string]any{"status": status})
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListByRole(ctx, models.RoleAdmin)
}

// EnsureAdmin creates a verified ADMIN account for email unless one exists.
// An existing account is promoted instead; its password is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, false, models.NewFieldValidationError("email", err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Role == models.RoleAdmin && existing.EmailVerified {
			return existing, false, nil
		}
		user, err := s.userRepo.Update(ctx, existing.ID, map[string]any{
			"role":           models.RoleAdmin,
			"email_verified": true,
		})
		return user, false, err
	}

	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, false, models.NewFieldValidationError("password", err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}

	user := &models.User{
		Name:          strings.TrimSpace(name),
		Email:         email,
		Password:      string(hashed),
		Role:          models.RoleAdmin,
		Status:        models.UserActive,
		EmailVerified: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	observability.AuthEvents.WithLabelValues("seed_admin", "ok").Inc()
	return user, true, nil
}
