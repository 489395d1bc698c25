package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// AccessTokenTTL is the lifetime of an access credential
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the lifetime of a refresh credential and of its session store entry
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Identity represents a wallet-controlled account
type Identity struct {
	ID        string    // Unique identifier of the account
	Address   string    // Lowercase wallet address, immutable once created
	Nonce     string    // Current single-use login challenge
	Username  string    // Optional, unique when present
	Email     string    // Optional, unique when present
	CreatedAt time.Time // When the identity was first seen
	UpdatedAt time.Time // Last nonce or profile change
}

// IdentitySnapshot is the part of an identity embedded into session tokens.
// It is frozen at issuance time and goes stale if the record changes later.
type IdentitySnapshot struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Snapshot returns the token-safe view of the identity. The nonce is never included.
func (i *Identity) Snapshot() IdentitySnapshot {
	return IdentitySnapshot{
		ID:            i.ID,
		WalletAddress: i.Address,
		Username:      i.Username,
		Email:         i.Email,
	}
}

var validate = validator.New()

// ProfileUpdate carries the optional profile fields a user may change
type ProfileUpdate struct {
	Username *string `validate:"omitempty,min=3,max=20"`
	Email    *string `validate:"omitempty,email,max=254"`
}

// Validate requires at least one field and checks the bounds of those present
func (u *ProfileUpdate) Validate() error {
	if u.Username == nil && u.Email == nil {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if err := validate.Struct(u); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return fmt.Errorf("%w: %s", ErrValidation, profileFieldMessage(fields[0]))
		}
		return fmt.Errorf("%w: invalid profile", ErrValidation)
	}
	return nil
}

func profileFieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Username":
		return "username must be 3-20 characters"
	case "Email":
		return "email is invalid"
	default:
		return "invalid profile"
	}
}

// NormalizeAddress lowercases an address so records and cache keys are checksum-insensitive
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
