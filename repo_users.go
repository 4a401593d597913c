package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsersStore is the bun backed UserStore implementation. Field updates go
// through update-by-pk statements, relying on the database's per-row
// atomicity; the store performs no locking of its own.
type UsersStore struct {
	db *bun.DB
}

var _ UserStore = (*UsersStore)(nil)

// NewUsersStore creates a UserStore on the given bun handle
func NewUsersStore(db *bun.DB) *UsersStore {
	return &UsersStore{db: db}
}

// Create inserts a new user, assigning an id when none is set. Unique
// violations on the email column surface as conflict errors.
func (r *UsersStore) Create(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "email address is already registered").
				WithCode(goerrors.CodeConflict)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	return user, nil
}

// GetByID retrieves a user by primary key
func (r *UsersStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().Model(user).Where("usr.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, wrapSelectError(err, "user")
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email
func (r *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().Model(user).Where("usr.email = ?", NormalizeEmail(email)).Scan(ctx)
	if err != nil {
		return nil, wrapSelectError(err, "user")
	}
	return user, nil
}

// GetByResetDigest retrieves the user holding the given reset digest whose
// reset window has not passed. Expired digests behave exactly like missing
// ones.
func (r *UsersStore) GetByResetDigest(ctx context.Context, digest string, now time.Time) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().Model(user).
		Where("usr.password_reset_token_hash = ?", digest).
		Where("usr.password_reset_expires > ?", now).
		Scan(ctx)
	if err != nil {
		return nil, wrapSelectError(err, "user")
	}
	return user, nil
}

// Save persists the mutable fields of an existing user
func (r *UsersStore) Save(ctx context.Context, user *User) error {
	now := time.Now()
	user.UpdatedAt = &now

	res, err := r.db.NewUpdate().
		Model(user).
		Column("name", "email", "user_role", "password_hash", "password_changed_at",
			"password_reset_token_hash", "password_reset_expires", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerrors.New("user not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}

	return nil
}

func wrapSelectError(err error, entity string) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve "+entity)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique violation")
}
