// Package repository provides typed access to the collections in the store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/store"
)

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a user whose email is taken
	ErrUserExists = errors.New("user already exists")
)

// UserRepository handles the users collection
type UserRepository struct {
	store store.Store
}

// NewUserRepository creates a new user repository
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// Create inserts a new user. Email matching is exact and case-sensitive.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// The durable backend also enforces this with a unique index; the scan
	// covers cache mode and keeps behavior identical across backends.
	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if err := r.store.Put(ctx, store.CollectionUsers, user.ID, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.store.Get(ctx, store.CollectionUsers, id, &user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by exact email match
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var found *models.User
	err := r.store.Scan(ctx, store.CollectionUsers, func(key string, raw []byte) error {
		var user models.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return fmt.Errorf("failed to decode user %s: %w", key, err)
		}
		if user.Email == email {
			found = &user
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

// Update rewrites a user record
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.store.Put(ctx, store.CollectionUsers, user.ID, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user permanently
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, store.CollectionUsers, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// List returns every user ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.store.Scan(ctx, store.CollectionUsers, func(key string, raw []byte) error {
		var user models.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return fmt.Errorf("failed to decode user %s: %w", key, err)
		}
		users = append(users, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, store.CollectionUsers)
}
