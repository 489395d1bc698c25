package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/ports"
)

const nonceBytes = 16

// NonceStore keeps the single live login challenge of each identity
type NonceStore struct {
	identities ports.IdentityStore
}

// NewNonceStore creates a nonce store over the identity records
func NewNonceStore(identities ports.IdentityStore) *NonceStore {
	return &NonceStore{identities: identities}
}

// Issue creates the identity if needed and replaces its nonce with a fresh one
func (n *NonceStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return "", err
	}
	if _, err := n.identities.UpsertNonce(ctx, address, nonce); err != nil {
		return "", persistenceError("failed to issue nonce", err)
	}
	return nonce, nil
}

// Current returns the live nonce for address
func (n *NonceStore) Current(ctx context.Context, address string) (string, error) {
	identity, err := n.identities.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", err
		}
		return "", persistenceError("failed to read nonce", err)
	}
	return identity.Nonce, nil
}

// GenerateNonce returns 128 random bits as 32 hex characters
func GenerateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, core.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrPersistence, err)
}
