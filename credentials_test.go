package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/trailforge/go-auth"
)

func credentialsFixture(t *testing.T) (*auth.Credentials, *memoryStore, *recordingMailer, *auth.TokenService) {
	t.Helper()

	cfg := tokenConfig(time.Hour)
	store := newMemoryStore()
	mailer := &recordingMailer{}
	tokens := auth.NewTokenService(cfg)
	creds := auth.NewCredentials(store, mailer, tokens, cfg)

	return creds, store, mailer, tokens
}

func signupFixtureUser(t *testing.T, creds *auth.Credentials, email string) *auth.User {
	t.Helper()

	user, _, err := creds.Signup(context.Background(), auth.SignupPayload{
		Name:            "Test User",
		Email:           email,
		Password:        "correct-horse-battery",
		PasswordConfirm: "correct-horse-battery",
	})
	assert.NoError(t, err)
	return user
}

func TestSignup(t *testing.T) {
	creds, store, _, tokens := credentialsFixture(t)

	user, token, err := creds.Signup(context.Background(), auth.SignupPayload{
		Name:            "Maya Rivers",
		Email:           "Maya@Example.COM",
		Password:        "correct-horse-battery",
		PasswordConfirm: "correct-horse-battery",
	})
	assert.NoError(t, err)
	assert.NotNil(t, user)

	// email is case normalized, role defaults, hash never equals plaintext
	assert.Equal(t, "maya@example.com", user.Email)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)

	claims, err := tokens.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject())

	assert.Equal(t, 1, store.count())
}

func TestSignupPasswordConfirmMismatch(t *testing.T) {
	creds, store, _, _ := credentialsFixture(t)

	user, token, err := creds.Signup(context.Background(), auth.SignupPayload{
		Name:            "Maya Rivers",
		Email:           "maya@example.com",
		Password:        "abc12345",
		PasswordConfirm: "xyz98765",
	})
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Empty(t, token)

	var richErr *goerrors.Error
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	// nothing was persisted
	assert.Equal(t, 0, store.count())
}

func TestSignupDuplicateEmail(t *testing.T) {
	creds, _, _, _ := credentialsFixture(t)
	signupFixtureUser(t, creds, "maya@example.com")

	_, _, err := creds.Signup(context.Background(), auth.SignupPayload{
		Name:            "Impostor",
		Email:           "maya@example.com",
		Password:        "some-other-pass",
		PasswordConfirm: "some-other-pass",
	})
	assert.True(t, goerrors.Is(err, auth.ErrEmailTaken))
}

func TestLogin(t *testing.T) {
	creds, _, _, tokens := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	got, token, err := creds.Login(context.Background(), auth.LoginPayload{
		Email:    "maya@example.com",
		Password: "correct-horse-battery",
	})
	assert.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	claims, err := tokens.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	creds, _, _, _ := credentialsFixture(t)
	signupFixtureUser(t, creds, "maya@example.com")

	_, _, unknownErr := creds.Login(context.Background(), auth.LoginPayload{
		Email:    "ghost@example.com",
		Password: "whatever-password",
	})
	_, _, wrongErr := creds.Login(context.Background(), auth.LoginPayload{
		Email:    "maya@example.com",
		Password: "wrong-password",
	})

	// same kind, same message: no account enumeration
	assert.Error(t, unknownErr)
	assert.Error(t, wrongErr)
	assert.True(t, goerrors.Is(unknownErr, auth.ErrIncorrectCredentials))
	assert.True(t, goerrors.Is(wrongErr, auth.ErrIncorrectCredentials))
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginMissingFields(t *testing.T) {
	creds, _, _, _ := credentialsFixture(t)

	_, _, err := creds.Login(context.Background(), auth.LoginPayload{Email: "maya@example.com"})
	assert.Error(t, err)

	var richErr *goerrors.Error
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
}

func TestChangePassword(t *testing.T) {
	creds, store, _, tokens := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	// a session established before the change
	oldIssue := time.Now().Add(-5 * time.Second)
	oldToken, err := tokens.Issue(user.ID.String(), oldIssue)
	assert.NoError(t, err)

	updated, newToken, err := creds.ChangePassword(context.Background(), user.ID, auth.ChangePasswordPayload{
		PasswordCurrent: "correct-horse-battery",
		Password:        "brand-new-password",
		PasswordConfirm: "brand-new-password",
	})
	assert.NoError(t, err)
	assert.NotNil(t, updated.PasswordChangedAt)

	// every token issued strictly before the change is now stale
	oldClaims, err := tokens.Validate(oldToken)
	assert.NoError(t, err)
	assert.True(t, updated.ChangedPasswordAfter(oldClaims.IssuedAt()))

	// the token issued by the change itself is fresh
	newClaims, err := tokens.Validate(newToken)
	assert.NoError(t, err)
	assert.False(t, updated.ChangedPasswordAfter(newClaims.IssuedAt()))

	// the new password is live, the old one is not
	_, _, err = creds.Login(context.Background(), auth.LoginPayload{
		Email:    "maya@example.com",
		Password: "brand-new-password",
	})
	assert.NoError(t, err)

	_, _, err = creds.Login(context.Background(), auth.LoginPayload{
		Email:    "maya@example.com",
		Password: "correct-horse-battery",
	})
	assert.True(t, goerrors.Is(err, auth.ErrIncorrectCredentials))

	stored, err := store.GetByID(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored.PasswordChangedAt)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	creds, _, _, _ := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	_, _, err := creds.ChangePassword(context.Background(), user.ID, auth.ChangePasswordPayload{
		PasswordCurrent: "not-my-password",
		Password:        "brand-new-password",
		PasswordConfirm: "brand-new-password",
	})
	assert.True(t, goerrors.Is(err, auth.ErrMismatchedHashAndPassword))
}

var resetLinkRe = regexp.MustCompile(`/resetPassword/([0-9a-f]+)`)

func mailedSecret(t *testing.T, mailer *recordingMailer) string {
	t.Helper()

	m := resetLinkRe.FindStringSubmatch(mailer.lastBody)
	assert.Len(t, m, 2)
	return m[1]
}

func TestForgotPassword(t *testing.T) {
	creds, store, mailer, _ := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	err := creds.ForgotPassword(context.Background(), "maya@example.com")
	assert.NoError(t, err)
	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, "maya@example.com", mailer.lastTo)

	// stored digest matches the mailed secret, expiry is set alongside it
	secret := mailedSecret(t, mailer)
	stored, err := store.GetByID(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Equal(t, auth.HashResetToken(secret), stored.PasswordResetTokenHash)
	assert.NotNil(t, stored.PasswordResetExpires)
	assert.True(t, stored.PasswordResetExpires.After(time.Now()))
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	creds, store, mailer, _ := credentialsFixture(t)
	signupFixtureUser(t, creds, "maya@example.com")

	err := creds.ForgotPassword(context.Background(), "ghost@x.com")
	assert.True(t, goerrors.Is(err, auth.ErrEmailNotFound))
	assert.Equal(t, 0, mailer.sent)

	// no reset fields written anywhere
	stored, err := store.GetByEmail(context.Background(), "maya@example.com")
	assert.NoError(t, err)
	assert.Empty(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestForgotPasswordDeliveryFailureRollsBack(t *testing.T) {
	creds, store, mailer, _ := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	mailer.sendErr = errors.New("smtp connection refused")

	err := creds.ForgotPassword(context.Background(), "maya@example.com")
	assert.Error(t, err)

	var richErr *goerrors.Error
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeResetDelivery, richErr.TextCode)

	// the compensating write cleared the reset fields
	stored, err := store.GetByID(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Empty(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestForgotPasswordDeliveryFailureIsLogged(t *testing.T) {
	cfg := tokenConfig(time.Hour)
	store := newMemoryStore()
	mailer := &MockMailer{}
	logger := &MockLogger{}
	tokens := auth.NewTokenService(cfg)
	creds := auth.NewCredentials(store, mailer, tokens, cfg).WithLogger(logger)

	signupFixtureUser(t, creds, "maya@example.com")

	mailer.On("Send", mock.Anything, "maya@example.com", mock.Anything, mock.Anything).
		Return(errors.New("smtp connection refused"))
	logger.On("Error", "failed to send password reset email", mock.Anything)

	err := creds.ForgotPassword(context.Background(), "maya@example.com")
	assert.Error(t, err)

	mailer.AssertExpectations(t)
	logger.AssertExpectations(t)

	// the rollback save succeeded, so no second error line
	logger.AssertNumberOfCalls(t, "Error", 1)
}

func TestResetPassword(t *testing.T) {
	creds, store, mailer, tokens := credentialsFixture(t)
	user := signupFixtureUser(t, creds, "maya@example.com")

	assert.NoError(t, creds.ForgotPassword(context.Background(), "maya@example.com"))
	secret := mailedSecret(t, mailer)

	updated, token, err := creds.ResetPassword(context.Background(), secret, auth.ResetPasswordPayload{
		Password:        "fresh-new-password",
		PasswordConfirm: "fresh-new-password",
	})
	assert.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)
	assert.NotNil(t, updated.PasswordChangedAt)

	claims, err := tokens.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject())

	// the secret is single use: reset fields were cleared on success
	stored, err := store.GetByID(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Empty(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)

	_, _, err = creds.ResetPassword(context.Background(), secret, auth.ResetPasswordPayload{
		Password:        "yet-another-password",
		PasswordConfirm: "yet-another-password",
	})
	assert.True(t, goerrors.Is(err, auth.ErrResetInvalidOrExpired))

	// the new password logs in
	_, _, err = creds.Login(context.Background(), auth.LoginPayload{
		Email:    "maya@example.com",
		Password: "fresh-new-password",
	})
	assert.NoError(t, err)
}

func TestResetPasswordExpiredSecret(t *testing.T) {
	creds, _, mailer, _ := credentialsFixture(t)
	signupFixtureUser(t, creds, "maya@example.com")

	start := time.Now()
	creds.WithClock(func() time.Time { return start })

	assert.NoError(t, creds.ForgotPassword(context.Background(), "maya@example.com"))
	secret := mailedSecret(t, mailer)

	// past the 10 minute window the correct secret no longer matches
	creds.WithClock(func() time.Time { return start.Add(11 * time.Minute) })

	_, _, err := creds.ResetPassword(context.Background(), secret, auth.ResetPasswordPayload{
		Password:        "fresh-new-password",
		PasswordConfirm: "fresh-new-password",
	})
	assert.True(t, goerrors.Is(err, auth.ErrResetInvalidOrExpired))
}

func TestResetPasswordUnknownSecret(t *testing.T) {
	creds, _, _, _ := credentialsFixture(t)
	signupFixtureUser(t, creds, "maya@example.com")
	assert.NoError(t, creds.ForgotPassword(context.Background(), "maya@example.com"))

	// syntactically valid secret that matches no stored digest
	_, _, err := creds.ResetPassword(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000", auth.ResetPasswordPayload{
		Password:        "fresh-new-password",
		PasswordConfirm: "fresh-new-password",
	})
	assert.True(t, goerrors.Is(err, auth.ErrResetInvalidOrExpired))
}
