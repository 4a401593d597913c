package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside structured errors.
const (
	TextCodeInvalidCreds   = "INVALID_CREDENTIALS"
	TextCodeEmailTaken     = "EMAIL_TAKEN"
	TextCodeEmailNotFound  = "EMAIL_NOT_FOUND"
	TextCodeEmptyPassword  = "EMPTY_PASSWORD"
	TextCodeTokenMissing   = "TOKEN_MISSING"
	TextCodeTokenExpired   = "TOKEN_EXPIRED"
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	TextCodeTokenSignature = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenStale     = "TOKEN_STALE"
	TextCodeIdentityGone   = "IDENTITY_GONE"
	TextCodeRoleNotAllowed = "ROLE_NOT_ALLOWED"
	TextCodeResetInvalid   = "RESET_TOKEN_INVALID_OR_EXPIRED"
	TextCodeResetDelivery  = "RESET_DELIVERY_FAILED"
)

// ErrMismatchedHashAndPassword is returned when a password fails bcrypt
// verification against a stored hash.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrIncorrectCredentials is the single message we return for both an unknown
// email and a wrong password, so callers cannot enumerate accounts.
var ErrIncorrectCredentials = goerrors.New("incorrect email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when a signup email is already registered.
var ErrEmailTaken = goerrors.New("email address is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrEmailNotFound is returned by ForgotPassword for unknown addresses.
var ErrEmailNotFound = goerrors.New("no user found with that email address", goerrors.CategoryNotFound).
	WithTextCode(TextCodeEmailNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty plaintext passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMissing is returned when a protected route sees no bearer token.
var ErrTokenMissing = goerrors.New("you are not logged in, please log in to get access", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when the token's embedded expiry has passed.
var ErrTokenExpired = goerrors.New("session token has expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignature is returned when the token signature does not verify.
var ErrTokenSignature = goerrors.New("session token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when the token cannot be parsed at all.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrStaleToken is returned when the owning user changed their password after
// the token was issued.
var ErrStaleToken = goerrors.New("password changed after this token was issued, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenStale).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityGone is returned when a valid token references a user that no
// longer exists.
var ErrIdentityGone = goerrors.New("the user belonging to this token no longer exists", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityGone).
	WithCode(goerrors.CodeUnauthorized)

// ErrRoleNotAllowed is returned by the authorization gate.
var ErrRoleNotAllowed = goerrors.New("you do not have permission to perform this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRoleNotAllowed).
	WithCode(goerrors.CodeForbidden)

// ErrResetInvalidOrExpired covers non-matching, consumed, and expired reset
// secrets alike.
var ErrResetInvalidOrExpired = goerrors.New("reset token is invalid or has expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeResetInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrResetDeliveryFailed is returned when the reset email cannot be sent. The
// partially written reset fields have been rolled back by the time callers
// see this error.
var ErrResetDeliveryFailed = goerrors.New("there was an error sending the email, please try again later", goerrors.CategoryInternal).
	WithTextCode(TextCodeResetDelivery).
	WithCode(goerrors.CodeInternal)

// IsTokenExpiredError will check for expired tokens. Rich errors are matched
// by text code, which survives wrapping; the string check catches raw jwt
// library errors.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for unparseable tokens, by text code or by the
// jwt library's message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
