package core

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrAlreadyLoggedIn  = errors.New("already logged in")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidToken     = errors.New("invalid token")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPersistence      = errors.New("persistence failure")
	ErrSessionStore     = errors.New("session store failure")
	ErrPinning          = errors.New("ipfs pinning failed")
	ErrMinting          = errors.New("on-chain minting failed")
	ErrMintingDisabled  = errors.New("on-chain minting is not configured")
	ErrConfiguration    = errors.New("invalid configuration")
)
