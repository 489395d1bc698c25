package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/layer-3/mintbox/core"
)

type nft struct {
	bun.BaseModel `bun:"table:nfts"`

	ID                 string          `bun:",pk"`
	TokenID            *int64          `bun:",nullzero"`
	ContractAddress    string          `bun:",nullzero"`
	Blockchain         string          `bun:",notnull"`
	MetadataURL        string          `bun:",notnull,unique:nft_urls"`
	MetadataGatewayURL string          `bun:",notnull"`
	ImageURL           string          `bun:",notnull,unique:nft_urls"`
	ImageGatewayURL    string          `bun:",notnull"`
	Name               string          `bun:",notnull"`
	Description        string          `bun:",notnull"`
	OwnerAddress       string          `bun:",notnull"`
	CreatorAddress     string          `bun:",notnull"`
	Price              decimal.Decimal `bun:"type:text,notnull"`
	TxHash             string          `bun:",nullzero"`
	CreatedAt          time.Time       `bun:",notnull"`
	UpdatedAt          time.Time       `bun:",notnull"`
}

// BunNFTStore keeps NFT records in a SQL database through bun
type BunNFTStore struct {
	db *bun.DB
}

// NewBunNFTStore creates the nfts table if needed and returns the store
func NewBunNFTStore(ctx context.Context, db *bun.DB) (*BunNFTStore, error) {
	s := &BunNFTStore{db: db}
	if err := createTable(ctx, db, (*nft)(nil)); err != nil {
		return nil, fmt.Errorf("failed to create nft store: %w", err)
	}
	return s, nil
}

func (s *BunNFTStore) Create(ctx context.Context, in *core.NFT) error {
	row := new(nft)
	copier.Copy(row, in)
	_, err := s.db.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		return queryError("failed to create nft", err)
	}
	return nil
}

func (s *BunNFTStore) FindByID(ctx context.Context, id string) (*core.NFT, error) {
	row := new(nft)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, queryError("failed to get nft", err)
	}
	return toNFT(row), nil
}

func (s *BunNFTStore) FindByURLs(ctx context.Context, metadataURL, imageURL string) (*core.NFT, error) {
	row := new(nft)
	err := s.db.NewSelect().
		Model(row).
		Where("metadata_url = ?", metadataURL).
		Where("image_url = ?", imageURL).
		Scan(ctx)
	if err != nil {
		return nil, queryError("failed to get nft", err)
	}
	return toNFT(row), nil
}

func (s *BunNFTStore) ListByOwner(ctx context.Context, owner string) ([]*core.NFT, error) {
	var rows []nft
	err := s.db.NewSelect().
		Model(&rows).
		Where("owner_address = ?", core.NormalizeAddress(owner)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, queryError("failed to list nfts", err)
	}
	out := make([]*core.NFT, 0, len(rows))
	for i := range rows {
		out = append(out, toNFT(&rows[i]))
	}
	return out, nil
}

func (s *BunNFTStore) SetMinted(ctx context.Context, id string, receipt core.MintReceipt) error {
	res, err := s.db.NewUpdate().
		Model((*nft)(nil)).
		Set("token_id = ?", receipt.TokenID).
		Set("tx_hash = ?", receipt.TxHash).
		Set("contract_address = ?", core.NormalizeAddress(receipt.ContractAddress)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return queryError("failed to record mint", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to record mint: %w", core.ErrNotFound)
	}
	return nil
}

func (s *BunNFTStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*nft)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return queryError("failed to delete nft", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to delete nft: %w", core.ErrNotFound)
	}
	return nil
}

func toNFT(row *nft) *core.NFT {
	out := new(core.NFT)
	copier.Copy(out, row)
	return out
}
