// Package directory owns user identity records: registration, credential
// verification, plan assignment, and activity tracking. All mutations to a
// given user are serialized through a per-user lock so concurrent requests
// cannot lose updates.
package directory

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/neuroflux/backend/internal/auth"
	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/repository"
)

var (
	// ErrEmailTaken is returned when registering a duplicate email
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for unknown email and wrong password
	// alike, so responses cannot be used for user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned for an unknown user ID
	ErrNotFound = errors.New("user not found")
)

// Service is the user directory
type Service struct {
	repo  *repository.UserRepository
	locks keyedMutex

	// registerMu serializes registrations so two concurrent signups with the
	// same email cannot both pass the duplicate check in cache mode.
	registerMu sync.Mutex
}

// NewService creates a user directory over the given repository
func NewService(repo *repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// Register creates a new verified user. The email must not be in use; the
// match is exact and case-sensitive.
func (s *Service) Register(ctx context.Context, name, email, passwordHash, role string) (*models.User, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	if role == "" {
		role = models.RoleUser
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Plan:         models.PlanFree,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
		LastActive:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// EmailInUse reports whether an email is already registered
func (s *Service) EmailInUse(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

// Authenticate verifies credentials and returns the user. The error does not
// distinguish an unknown email from a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RecordActivity updates lastActive and currentAction. Best-effort: failures
// are logged and never propagated to the caller.
func (s *Service) RecordActivity(ctx context.Context, userID, action string) {
	err := s.mutate(ctx, userID, func(user *models.User) {
		user.LastActive = time.Now().UTC()
		user.CurrentAction = action
	})
	if err != nil {
		log.Printf("[directory] activity update for %s failed: %v", userID, err)
	}
}

// SetPlan assigns a plan to a user. Idempotent: re-applying the current plan
// is a no-op write.
func (s *Service) SetPlan(ctx context.Context, userID, plan string) error {
	return s.mutate(ctx, userID, func(user *models.User) {
		user.Plan = plan
	})
}

// IncrementUsage adds exactly 1 to usageCount and returns the updated user
func (s *Service) IncrementUsage(ctx context.Context, userID string) (*models.User, error) {
	var updated *models.User
	err := s.mutateGet(ctx, userID, func(user *models.User) {
		user.UsageCount++
		updated = user
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RefundUsage returns one previously consumed unit, flooring at zero. Used
// when the gated operation failed after admission was charged.
func (s *Service) RefundUsage(ctx context.Context, userID string) (*models.User, error) {
	var updated *models.User
	err := s.mutateGet(ctx, userID, func(user *models.User) {
		if user.UsageCount > 0 {
			user.UsageCount--
		}
		updated = user
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TryConsumeUsage increments usageCount only when allowed(user) reports
// admission, with the check and the increment under the same per-user lock.
// Returns the user as seen inside the lock and whether the unit was consumed.
func (s *Service) TryConsumeUsage(ctx context.Context, userID string, allowed func(*models.User) bool) (*models.User, bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	if !allowed(user) {
		return user, false, nil
	}

	user.UsageCount++
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Get returns a user by ID
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetByID satisfies auth.UserLookup
func (s *Service) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.Get(ctx, userID)
}

// List returns all users
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// Count returns the number of users
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Delete removes a user permanently and returns the removed record. The
// read and the delete share the user's lock, so a concurrent delete is
// reported as ErrNotFound rather than a spurious internal failure.
func (s *Service) Delete(ctx context.Context, userID string) (*models.User, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// mutate applies fn to the user under its lock and writes the result back.
// A failed durable-mode write means the mutation is not applied.
func (s *Service) mutate(ctx context.Context, userID string, fn func(*models.User)) error {
	return s.mutateGet(ctx, userID, fn)
}

func (s *Service) mutateGet(ctx context.Context, userID string, fn func(*models.User)) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}

	fn(user)
	return s.repo.Update(ctx, user)
}

// keyedMutex serializes operations per entity key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
