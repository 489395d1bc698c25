package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/mintbox/core"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs.
// Access and refresh tokens are signed with different secrets.
type JWTTokenizer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(accessSecret, refreshSecret string) (*JWTTokenizer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("%w: both token secrets are required", core.ErrConfiguration)
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", core.ErrConfiguration)
	}

	return &JWTTokenizer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     core.AccessTokenTTL,
		refreshTTL:    core.RefreshTokenTTL,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source used for issuance and expiry checks
func (j *JWTTokenizer) WithClock(now func() time.Time) *JWTTokenizer {
	j.now = now
	return j
}

// IssueAccessToken signs a short-lived access token for identity
func (j *JWTTokenizer) IssueAccessToken(identity core.IdentitySnapshot) (core.IssuedToken, error) {
	token, err := j.issue(identity, AudienceAccess, j.accessSecret, j.accessTTL)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// IssueRefreshToken signs a long-lived refresh token for identity
func (j *JWTTokenizer) IssueRefreshToken(identity core.IdentitySnapshot) (core.IssuedToken, error) {
	token, err := j.issue(identity, AudienceRefresh, j.refreshSecret, j.refreshTTL)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

// VerifyAccessToken parses an access token and returns the embedded identity
func (j *JWTTokenizer) VerifyAccessToken(tokenStr string) (*core.IdentitySnapshot, error) {
	return j.verify(tokenStr, AudienceAccess, j.accessSecret)
}

// VerifyRefreshToken parses a refresh token and returns the embedded identity
func (j *JWTTokenizer) VerifyRefreshToken(tokenStr string) (*core.IdentitySnapshot, error) {
	return j.verify(tokenStr, AudienceRefresh, j.refreshSecret)
}

func (j *JWTTokenizer) issue(identity core.IdentitySnapshot, audience string, secret []byte, ttl time.Duration) (core.IssuedToken, error) {
	issuedAt := j.now()
	expiresAt := issuedAt.Add(ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.WalletAddress,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Audience:  jwt.ClaimStrings{audience},
		},
		User: identity,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(secret)
	if err != nil {
		return core.IssuedToken{}, err
	}

	return core.IssuedToken{Token: signedToken, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (j *JWTTokenizer) verify(tokenStr, audience string, secret []byte) (*core.IdentitySnapshot, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", core.ErrInvalidToken)
	}
	if claims.User.WalletAddress == "" || claims.User.WalletAddress != claims.Subject {
		return nil, fmt.Errorf("%w: subject does not match identity", core.ErrInvalidToken)
	}

	user := claims.User
	return &user, nil
}
