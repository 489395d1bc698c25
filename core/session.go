package core

import "time"

// IssuedToken is a signed credential together with its expiry
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult is returned by a successful wallet login
type LoginResult struct {
	Access   IssuedToken
	Refresh  IssuedToken
	Identity IdentitySnapshot
}
