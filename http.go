package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionGate authenticates each request from its bearer token: it verifies
// the token, re-resolves the user, rejects tokens issued before a later
// password change, and attaches the user to the request for downstream
// handlers.
type SessionGate struct {
	store  UserStore
	tokens *TokenService
	logger Logger
}

// NewSessionGate creates the request-authentication middleware provider
func NewSessionGate(store UserStore, tokens *TokenService) *SessionGate {
	return &SessionGate{
		store:  store,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (g *SessionGate) WithLogger(logger Logger) *SessionGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Protect returns the middleware enforcing authentication. Rejections are
// plain errors routed through the app's error handler; nothing downstream of
// a rejection runs.
func (g *SessionGate) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := extractBearerToken(c)
		if err != nil {
			return err
		}

		claims, err := g.tokens.Validate(raw)
		if err != nil {
			return err
		}

		id, err := uuid.Parse(claims.Subject())
		if err != nil {
			return ErrTokenMalformed
		}

		user, err := g.store.GetByID(c.Context(), id)
		if err != nil {
			if goerrors.IsNotFound(err) {
				// Deleted accounts can still hold cryptographically valid tokens.
				return ErrIdentityGone
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve session user")
		}

		if user.ChangedPasswordAfter(claims.IssuedAt()) {
			return ErrStaleToken
		}

		c.Locals(LocalsUserKey, user)
		c.SetUserContext(WithContext(c.UserContext(), user))

		return c.Next()
	}
}

// RestrictTo returns the authorization middleware for the given role set.
// It expects the session gate to have resolved the user already; membership
// is the only check, there are no side effects.
func RestrictTo(allowed RoleSet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return ErrTokenMissing
		}

		if !allowed.Contains(user.Role) {
			return ErrRoleNotAllowed
		}

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrTokenMissing
	}

	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return "", ErrTokenMissing
	}

	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", ErrTokenMissing
	}

	return token, nil
}

// NewErrorHandler builds the single boundary that maps error kind to status
// code and a user-safe message. Internal errors are logged with full detail;
// in production their message is replaced with a generic one.
func NewErrorHandler(cfg *Config, logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := statusFromCategory(richErr.Category)
		message := richErr.Message

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"error", err,
				"category", richErr.Category,
				"path", c.OriginalURL(),
			)
			if cfg.IsProduction() {
				message = "something went very wrong"
			}
		}

		return c.Status(status).JSON(errorEnvelope{
			Status:  envelopeStatus(status),
			Message: message,
			Code:    richErr.TextCode,
		})
	}
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func envelopeStatus(httpStatus int) string {
	if httpStatus >= fiber.StatusInternalServerError {
		return "error"
	}
	return "fail"
}
