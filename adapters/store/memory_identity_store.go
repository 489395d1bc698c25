package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/mintbox/core"
)

// MemoryIdentityStore is an in-memory implementation of the IdentityStore interface
type MemoryIdentityStore struct {
	byAddress map[string]*core.Identity
	mu        sync.RWMutex
}

// NewMemoryIdentityStore creates a new in-memory identity store
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		byAddress: make(map[string]*core.Identity),
	}
}

func (s *MemoryIdentityStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.byAddress[core.NormalizeAddress(address)]; ok {
		cp := *id
		return &cp, nil
	}
	return nil, fmt.Errorf("failed to get identity: %w", core.ErrNotFound)
}

func (s *MemoryIdentityStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	return s.findFirst(func(i *core.Identity) bool { return i.ID == id })
}

func (s *MemoryIdentityStore) FindByUsername(ctx context.Context, username string) (*core.Identity, error) {
	return s.findFirst(func(i *core.Identity) bool { return username != "" && i.Username == username })
}

func (s *MemoryIdentityStore) FindByEmail(ctx context.Context, email string) (*core.Identity, error) {
	return s.findFirst(func(i *core.Identity) bool { return email != "" && i.Email == email })
}

func (s *MemoryIdentityStore) findFirst(match func(*core.Identity) bool) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.byAddress {
		if match(id) {
			cp := *id
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("failed to get identity: %w", core.ErrNotFound)
}

func (s *MemoryIdentityStore) UpsertNonce(ctx context.Context, address, nonce string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address = core.NormalizeAddress(address)
	now := time.Now().UTC()

	id, ok := s.byAddress[address]
	if !ok {
		id = &core.Identity{
			ID:        uuid.NewString(),
			Address:   address,
			CreatedAt: now,
		}
		s.byAddress[address] = id
	}
	id.Nonce = nonce
	id.UpdatedAt = now

	cp := *id
	return &cp, nil
}

func (s *MemoryIdentityStore) RotateNonce(ctx context.Context, address, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[core.NormalizeAddress(address)]
	if !ok || id.Nonce != expected {
		return false, nil
	}
	id.Nonce = next
	id.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryIdentityStore) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *core.Identity
	for _, i := range s.byAddress {
		if i.ID == id {
			target = i
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("failed to update profile: %w", core.ErrNotFound)
	}

	for _, other := range s.byAddress {
		if other.ID == id {
			continue
		}
		if update.Username != nil && *update.Username != "" && other.Username == *update.Username {
			return nil, fmt.Errorf("failed to update profile: %w", core.ErrConflict)
		}
		if update.Email != nil && *update.Email != "" && other.Email == *update.Email {
			return nil, fmt.Errorf("failed to update profile: %w", core.ErrConflict)
		}
	}

	if update.Username != nil {
		target.Username = *update.Username
	}
	if update.Email != nil {
		target.Email = *update.Email
	}
	target.UpdatedAt = time.Now().UTC()

	cp := *target
	return &cp, nil
}
