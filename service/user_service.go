package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/ports"
)

// UserService manages profile data of identities
type UserService struct {
	identities ports.IdentityStore
	logger     zerolog.Logger
}

// NewUserService creates a new user service
func NewUserService(identities ports.IdentityStore, logger zerolog.Logger) *UserService {
	return &UserService{identities: identities, logger: logger}
}

// Get returns the identity with id
func (s *UserService) Get(ctx context.Context, id string) (*core.Identity, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, persistenceError("failed to load identity", err)
	}
	return identity, nil
}

// UpdateProfile changes username and/or email of target. Only the owner may do so.
func (s *UserService) UpdateProfile(ctx context.Context, caller core.IdentitySnapshot, target string, update core.ProfileUpdate) (*core.Identity, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: user id is required", core.ErrValidation)
	}
	if caller.ID != target {
		return nil, core.ErrForbidden
	}

	if update.Username != nil {
		trimmed := strings.TrimSpace(*update.Username)
		update.Username = &trimmed
	}
	if update.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*update.Email))
		update.Email = &normalized
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	if update.Email != nil {
		if err := s.ensureUnused(ctx, target, "email", s.identities.FindByEmail, *update.Email); err != nil {
			return nil, err
		}
	}
	if update.Username != nil {
		if err := s.ensureUnused(ctx, target, "username", s.identities.FindByUsername, *update.Username); err != nil {
			return nil, err
		}
	}

	identity, err := s.identities.UpdateProfile(ctx, target, update)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		return nil, persistenceError("failed to update profile", err)
	}

	s.logger.Info().Str("id", target).Msg("profile updated")
	return identity, nil
}

type finder func(ctx context.Context, value string) (*core.Identity, error)

func (s *UserService) ensureUnused(ctx context.Context, owner, field string, find finder, value string) error {
	existing, err := find(ctx, value)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return persistenceError("failed to check "+field, err)
	case existing.ID != owner:
		return fmt.Errorf("%w: %s already in use by another user", core.ErrConflict, field)
	}
	return nil
}
