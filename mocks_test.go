package auth_test

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/trailforge/go-auth"
)

// memoryStore is an in-memory auth.UserStore fake. Reads return copies so
// mutations only stick after Save, mirroring a real database.
type memoryStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*auth.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: map[uuid.UUID]*auth.User{}}
}

func notFoundErr() error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

func (s *memoryStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.Email == user.Email {
			return nil, goerrors.New("email address is already registered", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	clone := *user
	s.byID[user.ID] = &clone

	return user, nil
}

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, notFoundErr()
	}

	clone := *u
	return &clone, nil
}

func (s *memoryStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, notFoundErr()
}

func (s *memoryStore) GetByResetDigest(ctx context.Context, digest string, now time.Time) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if u.PasswordResetTokenHash == digest &&
			u.PasswordResetExpires != nil &&
			u.PasswordResetExpires.After(now) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, notFoundErr()
}

func (s *memoryStore) Save(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return notFoundErr()
	}

	clone := *user
	s.byID[user.ID] = &clone
	return nil
}

func (s *memoryStore) delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// recordingMailer captures the last message and optionally fails every send.
type recordingMailer struct {
	mu       sync.Mutex
	sendErr  error
	lastTo   string
	lastBody string
	sent     int
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.lastTo = to
	m.lastBody = body
	m.sent++
	return nil
}

// MockMailer implements auth.Mailer for expectation-style tests
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}
