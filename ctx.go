package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// LocalsUserKey is the fiber Locals key under which the session gate stores
// the resolved user.
const LocalsUserKey = "auth_user"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// CurrentUser extracts the user the session gate attached to the request.
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	raw, ok := c.Locals(LocalsUserKey).(*User)
	return raw, ok
}
