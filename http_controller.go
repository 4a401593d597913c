package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// SessionPayload is the success envelope returned by the credential routes
type SessionPayload struct {
	Status  string       `json:"status"`
	Token   string       `json:"token,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    *SessionData `json:"data,omitempty"`
}

// SessionData wraps the sanitized user in the success envelope
type SessionData struct {
	User *User `json:"user"`
}

// ControllerRoutes holds the route paths so hosts can remap them
type ControllerRoutes struct {
	Signup         string
	Login          string
	Logout         string
	UpdatePassword string
	ForgotPassword string
	ResetPassword  string
}

// Controller exposes the credential flows over HTTP and builds the session
// envelope (cookie + JSON) for every successful authentication.
type Controller struct {
	credentials *Credentials
	gate        *SessionGate
	cfg         *Config
	logger      Logger
	Routes      *ControllerRoutes
}

// NewController creates the HTTP controller
func NewController(credentials *Credentials, gate *SessionGate, cfg *Config) *Controller {
	return &Controller{
		credentials: credentials,
		gate:        gate,
		cfg:         cfg,
		logger:      defLogger{},
		Routes: &ControllerRoutes{
			Signup:         "/signup",
			Login:          "/login",
			Logout:         "/logout",
			UpdatePassword: "/updateMyPassword",
			ForgotPassword: "/forgotPassword",
			ResetPassword:  "/resetPassword/:token",
		},
	}
}

func (ct *Controller) WithLogger(logger Logger) *Controller {
	if logger != nil {
		ct.logger = logger
	}
	return ct
}

// RegisterRoutes mounts the credential routes on the given router. Only
// UpdatePassword sits behind the session gate; role restrictions for
// downstream resource routes are declared by the host next to those routes.
func (ct *Controller) RegisterRoutes(app fiber.Router) {
	app.Post(ct.Routes.Signup, ct.Signup)
	app.Post(ct.Routes.Login, ct.Login)
	app.Get(ct.Routes.Logout, ct.Logout)
	app.Post(ct.Routes.ForgotPassword, ct.ForgotPassword)
	app.Patch(ct.Routes.ResetPassword, ct.ResetPassword)
	app.Patch(ct.Routes.UpdatePassword, ct.gate.Protect(), ct.UpdatePassword)
}

// Signup handles POST /signup
func (ct *Controller) Signup(c *fiber.Ctx) error {
	payload := SignupPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse signup payload").
			WithCode(goerrors.CodeBadRequest)
	}

	user, token, err := ct.credentials.Signup(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return ct.sendSession(c, fiber.StatusCreated, user, token)
}

// Login handles POST /login
func (ct *Controller) Login(c *fiber.Ctx) error {
	payload := LoginPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse login payload").
			WithCode(goerrors.CodeBadRequest)
	}

	user, token, err := ct.credentials.Login(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return ct.sendSession(c, fiber.StatusOK, user, token)
}

// Logout handles GET /logout by clearing the session cookie
func (ct *Controller) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     ct.cfg.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   ct.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Status(fiber.StatusOK).JSON(SessionPayload{Status: "success"})
}

// UpdatePassword handles PATCH /updateMyPassword. It requires the session
// gate to have resolved the user already.
func (ct *Controller) UpdatePassword(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrTokenMissing
	}

	payload := ChangePasswordPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse password change payload").
			WithCode(goerrors.CodeBadRequest)
	}

	updated, token, err := ct.credentials.ChangePassword(c.UserContext(), user.ID, payload)
	if err != nil {
		return err
	}

	return ct.sendSession(c, fiber.StatusOK, updated, token)
}

// ForgotPassword handles POST /forgotPassword
func (ct *Controller) ForgotPassword(c *fiber.Ctx) error {
	payload := struct {
		Email string `form:"email" json:"email"`
	}{}
	if err := c.BodyParser(&payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := ct.credentials.ForgotPassword(c.UserContext(), payload.Email); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(SessionPayload{
		Status:  "success",
		Message: "password reset link sent to the provided email",
	})
}

// ResetPassword handles PATCH /resetPassword/:token
func (ct *Controller) ResetPassword(c *fiber.Ctx) error {
	payload := ResetPasswordPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse password reset payload").
			WithCode(goerrors.CodeBadRequest)
	}

	user, token, err := ct.credentials.ResetPassword(c.UserContext(), c.Params("token"), payload)
	if err != nil {
		return err
	}

	return ct.sendSession(c, fiber.StatusOK, user, token)
}

// sendSession writes the session cookie and the success envelope. The user
// model strips its own secrets during JSON serialization.
func (ct *Controller) sendSession(c *fiber.Ctx, status int, user *User, token string) error {
	c.Cookie(&fiber.Cookie{
		Name:     ct.cfg.CookieName,
		Value:    token,
		Expires:  time.Now().Add(time.Duration(ct.cfg.CookieExpiryDays) * 24 * time.Hour),
		HTTPOnly: true,
		Secure:   ct.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Status(status).JSON(SessionPayload{
		Status: "success",
		Token:  token,
		Data:   &SessionData{User: user},
	})
}
