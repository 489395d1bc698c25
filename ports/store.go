package ports

import (
	"context"
	"time"

	"github.com/layer-3/mintbox/core"
)

// IdentityStore persists wallet identities and their login nonces
type IdentityStore interface {
	FindByAddress(ctx context.Context, address string) (*core.Identity, error)
	FindByID(ctx context.Context, id string) (*core.Identity, error)
	FindByUsername(ctx context.Context, username string) (*core.Identity, error)
	FindByEmail(ctx context.Context, email string) (*core.Identity, error)

	// UpsertNonce creates the identity when missing, otherwise overwrites its nonce
	UpsertNonce(ctx context.Context, address, nonce string) (*core.Identity, error)

	// RotateNonce replaces the nonce only if it still equals expected.
	// Returns false when another writer got there first.
	RotateNonce(ctx context.Context, address, expected, next string) (bool, error)

	UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) (*core.Identity, error)
}

// SessionStore keeps at most one refresh credential per identity
type SessionStore interface {
	Put(ctx context.Context, address, refreshToken string, ttl time.Duration) error
	Get(ctx context.Context, address string) (token string, found bool, err error)
	Delete(ctx context.Context, address string) (int64, error)
}

// NFTStore persists minted asset records
type NFTStore interface {
	Create(ctx context.Context, nft *core.NFT) error
	FindByID(ctx context.Context, id string) (*core.NFT, error)
	FindByURLs(ctx context.Context, metadataURL, imageURL string) (*core.NFT, error)
	ListByOwner(ctx context.Context, owner string) ([]*core.NFT, error)
	SetMinted(ctx context.Context, id string, receipt core.MintReceipt) error
	Delete(ctx context.Context, id string) error
}
