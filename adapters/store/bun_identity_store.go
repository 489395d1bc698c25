package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/layer-3/mintbox/core"
)

type identity struct {
	bun.BaseModel `bun:"table:identities"`

	ID        string    `bun:",pk"`
	Address   string    `bun:",unique,notnull"`
	Nonce     string    `bun:",notnull"`
	Username  string    `bun:",unique,nullzero"`
	Email     string    `bun:",unique,nullzero"`
	CreatedAt time.Time `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}

// BunIdentityStore keeps identities in a SQL database through bun
type BunIdentityStore struct {
	db *bun.DB
}

// NewBunIdentityStore creates the identities table if needed and returns the store
func NewBunIdentityStore(ctx context.Context, db *bun.DB) (*BunIdentityStore, error) {
	s := &BunIdentityStore{db: db}
	if err := createTable(ctx, db, (*identity)(nil)); err != nil {
		return nil, fmt.Errorf("failed to create identity store: %w", err)
	}
	return s, nil
}

func (s *BunIdentityStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	return s.findBy(ctx, "address", core.NormalizeAddress(address))
}

func (s *BunIdentityStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	return s.findBy(ctx, "id", id)
}

func (s *BunIdentityStore) FindByUsername(ctx context.Context, username string) (*core.Identity, error) {
	return s.findBy(ctx, "username", username)
}

func (s *BunIdentityStore) FindByEmail(ctx context.Context, email string) (*core.Identity, error) {
	return s.findBy(ctx, "email", email)
}

func (s *BunIdentityStore) findBy(ctx context.Context, column, value string) (*core.Identity, error) {
	row := new(identity)
	err := s.db.NewSelect().
		Model(row).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, queryError("failed to get identity", err)
	}
	out := new(core.Identity)
	copier.Copy(out, row)
	return out, nil
}

// UpsertNonce inserts a fresh identity or overwrites the nonce of an existing one in one statement
func (s *BunIdentityStore) UpsertNonce(ctx context.Context, address, nonce string) (*core.Identity, error) {
	address = core.NormalizeAddress(address)
	now := time.Now().UTC()
	row := &identity{
		ID:        uuid.NewString(),
		Address:   address,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (address) DO UPDATE").
		Set("nonce = EXCLUDED.nonce").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, queryError("failed to upsert nonce", err)
	}
	return s.FindByAddress(ctx, address)
}

// RotateNonce swaps the nonce only while it still equals expected
func (s *BunIdentityStore) RotateNonce(ctx context.Context, address, expected, next string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*identity)(nil)).
		Set("nonce = ?", next).
		Set("updated_at = ?", time.Now().UTC()).
		Where("address = ?", core.NormalizeAddress(address)).
		Where("nonce = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, queryError("failed to rotate nonce", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, queryError("failed to rotate nonce", err)
	}
	return n == 1, nil
}

func (s *BunIdentityStore) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) (*core.Identity, error) {
	q := s.db.NewUpdate().
		Model((*identity)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if update.Username != nil {
		q = q.Set("username = ?", nullIfEmpty(*update.Username))
	}
	if update.Email != nil {
		q = q.Set("email = ?", nullIfEmpty(*update.Email))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, queryError("failed to update profile", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("failed to update profile: %w", core.ErrNotFound)
	}
	return s.FindByID(ctx, id)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
