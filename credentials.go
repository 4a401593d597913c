package auth

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SignupPayload is the body of POST /signup
type SignupPayload struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	PasswordConfirm string `form:"passwordConfirm" json:"passwordConfirm"`
}

// Validate will validate the payload
func (p SignupPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&p.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// LoginPayload is the body of POST /login
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// ChangePasswordPayload is the body of PATCH /updateMyPassword
type ChangePasswordPayload struct {
	PasswordCurrent string `form:"passwordCurrent" json:"passwordCurrent"`
	Password        string `form:"password" json:"password"`
	PasswordConfirm string `form:"passwordConfirm" json:"passwordConfirm"`
}

// Validate will validate the payload
func (p ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PasswordCurrent, validation.Required),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&p.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// ResetPasswordPayload is the body of PATCH /resetPassword/:token
type ResetPasswordPayload struct {
	Password        string `form:"password" json:"password"`
	PasswordConfirm string `form:"passwordConfirm" json:"passwordConfirm"`
}

// Validate will validate the payload
func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&p.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// ValidateStringEquals builds an ozzo rule asserting equality with a fixed
// value, used for password confirmation fields.
func ValidateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return goerrors.New("values do not match", goerrors.CategoryValidation)
		}
		return nil
	}
}

// Credentials orchestrates the password hasher, the token service, the reset
// token generator, the user store, and the mailer into the signup, login, and
// password lifecycle flows.
type Credentials struct {
	store  UserStore
	mailer Mailer
	tokens *TokenService
	cfg    *Config
	logger Logger
	now    func() time.Time
}

// NewCredentials creates the credential service
func NewCredentials(store UserStore, mailer Mailer, tokens *TokenService, cfg *Config) *Credentials {
	return &Credentials{
		store:  store,
		mailer: mailer,
		tokens: tokens,
		cfg:    cfg,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (s *Credentials) WithLogger(logger Logger) *Credentials {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source, useful for tests
func (s *Credentials) WithClock(clock func() time.Time) *Credentials {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Signup registers a new user and logs them in. The stored password is
// hashed, the role defaults to RoleUser.
func (s *Credentials) Signup(ctx context.Context, payload SignupPayload) (*User, string, error) {
	if err := payload.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload").
			WithCode(goerrors.CodeBadRequest)
	}

	email := NormalizeEmail(payload.Email)

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !goerrors.IsNotFound(err) {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return nil, "", err
	}

	user := &User{
		Name:         payload.Name,
		Email:        email,
		Role:         RoleUser,
		PasswordHash: hash,
	}

	created, err := s.store.Create(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
			return nil, "", ErrEmailTaken
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	token, err := s.tokens.Issue(created.ID.String(), s.now())
	if err != nil {
		return nil, "", err
	}

	return created, token, nil
}

// Login verifies the credentials and issues a fresh session token. Unknown
// email and wrong password fail identically.
func (s *Credentials) Login(ctx context.Context, payload LoginPayload) (*User, string, error) {
	if err := payload.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryBadInput, "please provide email and password").
			WithCode(goerrors.CodeBadRequest)
	}

	user, err := s.store.GetByEmail(ctx, NormalizeEmail(payload.Email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, "", ErrIncorrectCredentials
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := ComparePasswordAndHash(payload.Password, user.PasswordHash); err != nil {
		return nil, "", ErrIncorrectCredentials
	}

	token, err := s.tokens.Issue(user.ID.String(), s.now())
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// ChangePassword verifies the current password, rehashes, stamps
// PasswordChangedAt, and issues a new token. Tokens issued before this call
// become stale and are rejected by the session gate from here on.
func (s *Credentials) ChangePassword(ctx context.Context, userID uuid.UUID, payload ChangePasswordPayload) (*User, string, error) {
	if err := payload.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload").
			WithCode(goerrors.CodeBadRequest)
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, "", ErrIdentityGone
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
	}

	if err := ComparePasswordAndHash(payload.PasswordCurrent, user.PasswordHash); err != nil {
		return nil, "", ErrMismatchedHashAndPassword
	}

	now := s.now()
	if err := user.SetPassword(payload.Password, now); err != nil {
		return nil, "", err
	}

	if err := s.store.Save(ctx, user); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password change")
	}

	token, err := s.tokens.Issue(user.ID.String(), now)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// ForgotPassword generates a reset secret, stores its digest and expiry on
// the user, and mails the secret embedded in a reset link. If delivery fails
// the reset fields are rolled back before the error surfaces.
func (s *Credentials) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrEmailNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	secret, digest, err := GenerateResetToken()
	if err != nil {
		return err
	}

	user.SetResetToken(digest, s.now().Add(s.cfg.ResetTokenTTL))
	if err := s.store.Save(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
	}

	resetURL := fmt.Sprintf("%s/resetPassword/%s", s.cfg.BaseURL, secret)
	subject := fmt.Sprintf("Your password reset token (expires in %s)", s.cfg.ResetTokenTTL)
	body := fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password to: %s\nIf you didn't forget the password, ignore this message.",
		resetURL,
	)

	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("failed to send password reset email", "error", err)

		// Compensating write: the stored digest is useless to the user since
		// the secret never reached them.
		user.ClearResetToken()
		if saveErr := s.store.Save(ctx, user); saveErr != nil {
			s.logger.Error("failed to roll back reset token", "error", saveErr)
		}

		return goerrors.Wrap(err, ErrResetDeliveryFailed.Category, ErrResetDeliveryFailed.Message).
			WithTextCode(ErrResetDeliveryFailed.TextCode).
			WithCode(goerrors.CodeInternal)
	}

	return nil
}

// ResetPassword consumes a reset secret: it looks up the user by the
// secret's digest within the expiry window, sets the new password, clears
// the reset fields, and issues a fresh token. A consumed or expired secret
// fails with ErrResetInvalidOrExpired.
func (s *Credentials) ResetPassword(ctx context.Context, secret string, payload ResetPasswordPayload) (*User, string, error) {
	if err := payload.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload").
			WithCode(goerrors.CodeBadRequest)
	}

	now := s.now()

	user, err := s.store.GetByResetDigest(ctx, HashResetToken(secret), now)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, "", ErrResetInvalidOrExpired
		}
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	if err := user.SetPassword(payload.Password, now); err != nil {
		return nil, "", err
	}
	user.ClearResetToken()

	if err := s.store.Save(ctx, user); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset")
	}

	token, err := s.tokens.Issue(user.ID.String(), now)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
