// Package memory provides process-local implementations of the persistence
// ports, used for local development and tests.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// UserStore keeps users in a map. Save enforces the same uniqueness
// constraints a database index would.
type UserStore struct {
	unit sync.Mutex // serializes Atomically scopes

	mu   sync.RWMutex
	seq  int64
	byID map[string]*domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (s *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.find(ctx, func(u *domain.User) bool { return u.Username == username })
	return existsResult(err)
}

func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	_, err := s.find(ctx, func(u *domain.User) bool { return u.Email == email })
	return existsResult(err)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.find(ctx, func(u *domain.User) bool { return u.Username == username })
}

// FindByUsernameOrEmail prefers a username match: one user's username may be
// another user's email.
func (s *UserStore) FindByUsernameOrEmail(ctx context.Context, value string) (*domain.User, error) {
	u, err := s.FindByUsername(ctx, value)
	if !errors.Is(err, domain.ErrUserNotFound) {
		return u, err
	}
	email := domain.NormalizeEmail(value)
	return s.find(ctx, func(u *domain.User) bool { return u.Email == email })
}

func (s *UserStore) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := cloneUser(user)
	doc.Email = domain.NormalizeEmail(doc.Email)

	for id, other := range s.byID {
		if id == doc.ID {
			continue
		}
		if other.Username == doc.Username {
			return nil, domain.ErrUsernameTaken
		}
		if other.Email == doc.Email {
			return nil, domain.ErrEmailInUse
		}
	}

	if doc.ID == "" {
		s.seq++
		doc.ID = strconv.FormatInt(s.seq, 10)
	} else {
		existing, ok := s.byID[doc.ID]
		if !ok {
			return nil, domain.ErrUserNotFound
		}
		doc.CreatedAt = existing.CreatedAt
	}

	s.byID[doc.ID] = doc
	return cloneUser(doc), nil
}

// Atomically runs fn while holding the store's unit lock, so check-then-write
// sequences from concurrent callers never interleave.
func (s *UserStore) Atomically(ctx context.Context, fn func(ctx context.Context, store ports.UserStore) error) error {
	s.unit.Lock()
	defer s.unit.Unlock()
	return fn(ctx, s)
}

// Len reports the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *UserStore) find(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func existsResult(err error) (bool, error) {
	switch err {
	case nil:
		return true, nil
	case domain.ErrUserNotFound:
		return false, nil
	default:
		return false, err
	}
}
