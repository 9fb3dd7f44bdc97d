package server

import (
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signUpRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/auth/sign-up/email
// @Summary Register with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signUpRequest true "Account"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/auth/sign-up/email [post]
func (s *Server) SignUp(c *fiber.Ctx) error {
	var req signUpRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := s.authService.SignUp(c.UserContext(), service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Account created, check your inbox to verify your email", user)
}

// SignIn handles POST /api/auth/sign-in/email
// @Summary Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signInRequest true "Credentials"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/auth/sign-in/email [post]
func (s *Server) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	session, err := s.authService.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Signed in", session)
}

// ResendVerification handles POST /api/auth/resend-verification
// @Summary Send a new verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Address"
// @Success 200 {object} SuccessResponse
// @Router /api/auth/resend-verification [post]
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if err := s.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "If the address needs verification a new link is on its way", nil)
}

// VerifyEmail handles GET /api/auth/verify-email?token=
// @Summary Confirm an email address
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/auth/verify-email [get]
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	user, err := s.authService.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Email verified", user)
}

// SignOut handles POST /api/auth/sign-out
// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/auth/sign-out [post]
func (s *Server) SignOut(c *fiber.Ctx) error {
	jti, _ := c.Locals(middleware.LocalTokenID).(string)
	exp, _ := c.Locals(middleware.LocalTokenExp).(time.Time)
	if err := s.authService.SignOut(c.UserContext(), jti, exp); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Signed out", nil)
}

// GetSession handles GET /api/auth/get-session
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/get-session [get]
func (s *Server) GetSession(c *fiber.Ctx) error {
	user, err := s.authService.GetSession(c.UserContext(), actor(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

// GoogleSignIn handles GET /api/auth/google
// @Summary Start Google sign-in
// @Tags auth
// @Success 302
// @Failure 503 {object} models.ErrorResponse
// @Router /api/auth/google [get]
func (s *Server) GoogleSignIn(c *fiber.Ctx) error {
	target, err := s.authService.GoogleAuthURL(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.Redirect(target, fiber.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback
// @Summary Finish Google sign-in
// @Tags auth
// @Produce json
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/google/callback [get]
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	if c.Query("error") != "" {
		return respondError(c, models.NewUnauthorizedError("Google sign-in was cancelled"))
	}
	session, err := s.authService.GoogleCallback(c.UserContext(), c.Query("state"), c.Query("code"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Signed in", session)
}
