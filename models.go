package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at signup
	RoleUser UserRole = "user"
	// RoleGuide can run tours
	RoleGuide UserRole = "guide"
	// RoleLeadGuide can run and manage tours
	RoleLeadGuide UserRole = "lead-guide"
	// RoleAdmin can do everything
	RoleAdmin UserRole = "admin"
)

// User is the user model. The password hash and the reset fields never make
// it into an outbound response: they are excluded from JSON serialization.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                     uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name                   string     `bun:"name,notnull" json:"name,omitempty"`
	Email                  string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Role                   UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	PasswordHash           string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt      *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetTokenHash string     `bun:"password_reset_token_hash,nullzero" json:"-"`
	PasswordResetExpires   *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	CreatedAt              *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt              *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ChangedPasswordAfter reports whether the user's password was changed after
// the given token issue time. Users that never changed their password always
// report false.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}

// SetResetToken stores the reset digest and its expiry. Both fields are set
// together, and cleared together by ClearResetToken.
func (u *User) SetResetToken(digest string, expires time.Time) {
	u.PasswordResetTokenHash = digest
	u.PasswordResetExpires = &expires
}

// ClearResetToken removes any outstanding reset digest and expiry.
func (u *User) ClearResetToken() {
	u.PasswordResetTokenHash = ""
	u.PasswordResetExpires = nil
}

// SetPassword hashes the plaintext and stamps PasswordChangedAt. The stamp is
// backdated one second so a token issued in the same response (whole-second
// iat resolution) is not rejected as stale.
func (u *User) SetPassword(plaintext string, now time.Time) error {
	hash, err := HashPassword(plaintext)
	if err != nil {
		return err
	}
	changed := now.Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	return nil
}

// NormalizeEmail lowercases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
