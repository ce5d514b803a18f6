package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuroflux/backend/internal/models"
	"github.com/neuroflux/backend/internal/store"
)

// SettingsRepository handles the GlobalSettings singleton
type SettingsRepository struct {
	store store.Store
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(s store.Store) *SettingsRepository {
	return &SettingsRepository{store: s}
}

// Get returns the current global settings, falling back to defaults if the
// record has never been written (fresh durable-mode deployments).
func (r *SettingsRepository) Get(ctx context.Context) (*models.GlobalSettings, error) {
	var settings models.GlobalSettings
	err := r.store.Get(ctx, store.CollectionSettings, store.SettingsKey, &settings)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DefaultGlobalSettings(), nil
		}
		return nil, fmt.Errorf("failed to get global settings: %w", err)
	}
	return &settings, nil
}

// Put rewrites the global settings record
func (r *SettingsRepository) Put(ctx context.Context, settings *models.GlobalSettings) error {
	if err := r.store.Put(ctx, store.CollectionSettings, store.SettingsKey, settings); err != nil {
		return fmt.Errorf("failed to store global settings: %w", err)
	}
	return nil
}
