package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/ports"
)

// Upload is an image received from a client
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// NFTService pins assets to IPFS, mints them and records the result
type NFTService struct {
	nfts     ports.NFTStore
	pinner   ports.Pinner
	minter   ports.Minter
	eventPub ports.EventPublisher
	logger   zerolog.Logger
	now      func() time.Time
}

// NewNFTService creates a new NFT service
func NewNFTService(nfts ports.NFTStore, pinner ports.Pinner, minter ports.Minter, eventPub ports.EventPublisher, logger zerolog.Logger) *NFTService {
	return &NFTService{
		nfts:     nfts,
		pinner:   pinner,
		minter:   minter,
		eventPub: eventPub,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates the request, pins image and metadata, stores the record and mints it
// when a chain is configured. The creator must be the calling wallet.
func (s *NFTService) Create(ctx context.Context, caller core.IdentitySnapshot, in core.NFTInput, image Upload) (*core.NFT, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.CreatorAddress != core.NormalizeAddress(caller.WalletAddress) {
		return nil, fmt.Errorf("%w: creatorAddress must be the signed-in wallet", core.ErrForbidden)
	}
	if err := validateImage(image); err != nil {
		return nil, err
	}

	img, err := s.pinner.PinFile(ctx, image.Filename, image.ContentType, io.LimitReader(image.Body, core.MaxImageSize))
	if err != nil {
		s.logger.Error().Err(err).Str("file", image.Filename).Msg("failed to pin image")
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	meta, err := s.pinner.PinJSON(ctx, "metadata.json", core.Metadata{
		Name:        in.Name,
		Description: in.Description,
		Image:       img.URL,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("name", in.Name).Msg("failed to pin metadata")
		return nil, fmt.Errorf("failed to upload metadata: %w", err)
	}
	if !core.IsIPFSURL(img.URL) || !core.IsIPFSURL(meta.URL) {
		return nil, fmt.Errorf("%w: pinning service returned malformed cid", core.ErrPinning)
	}

	if _, err := s.nfts.FindByURLs(ctx, meta.URL, img.URL); err == nil {
		return nil, fmt.Errorf("%w: NFT already exists", core.ErrConflict)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, persistenceError("failed to check for duplicates", err)
	}

	now := s.now().UTC()
	nft := &core.NFT{
		ID:                 uuid.NewString(),
		Blockchain:         core.DefaultBlockchain,
		MetadataURL:        meta.URL,
		MetadataGatewayURL: meta.GatewayURL,
		ImageURL:           img.URL,
		ImageGatewayURL:    img.GatewayURL,
		Name:               in.Name,
		Description:        in.Description,
		OwnerAddress:       in.CreatorAddress,
		CreatorAddress:     in.CreatorAddress,
		Price:              in.Price,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// The unique (metadata, image) row claims the asset before anything goes on-chain
	if err := s.nfts.Create(ctx, nft); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, fmt.Errorf("%w: NFT already exists", core.ErrConflict)
		}
		return nil, persistenceError("failed to store nft", err)
	}

	receipt, err := s.minter.Mint(ctx, nft.OwnerAddress, nft.MetadataURL)
	switch {
	case err == nil:
		if err := s.nfts.SetMinted(ctx, nft.ID, receipt); err != nil {
			s.logger.Error().Err(err).Str("id", nft.ID).Str("tx", receipt.TxHash).Msg("minted but failed to record receipt")
			return nil, persistenceError("failed to record mint", err)
		}
		tokenID := receipt.TokenID
		nft.TokenID = &tokenID
		nft.TxHash = receipt.TxHash
		nft.ContractAddress = core.NormalizeAddress(receipt.ContractAddress)
	case errors.Is(err, core.ErrMintingDisabled):
		s.logger.Debug().Msg("minting disabled, storing off-chain record")
	default:
		s.logger.Error().Err(err).Str("metadata", nft.MetadataURL).Msg("failed to mint")
		if delErr := s.nfts.Delete(ctx, nft.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("id", nft.ID).Msg("failed to release unminted nft")
		}
		return nil, fmt.Errorf("failed to mint: %w", err)
	}

	if err := s.eventPub.PublishNFTCreated(ctx, nft); err != nil {
		s.logger.Warn().Err(err).Str("id", nft.ID).Msg("failed to publish nft event")
	}

	s.logger.Info().Str("id", nft.ID).Str("owner", nft.OwnerAddress).Msg("nft created")
	return nft, nil
}

// Get returns one NFT record
func (s *NFTService) Get(ctx context.Context, id string) (*core.NFT, error) {
	nft, err := s.nfts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, persistenceError("failed to load nft", err)
	}
	return nft, nil
}

// ListOwned returns the NFTs owned by address, newest first
func (s *NFTService) ListOwned(ctx context.Context, address string) ([]*core.NFT, error) {
	nfts, err := s.nfts.ListByOwner(ctx, address)
	if err != nil {
		return nil, persistenceError("failed to list nfts", err)
	}
	return nfts, nil
}

func validateImage(image Upload) error {
	if image.Body == nil {
		return fmt.Errorf("%w: image file is required", core.ErrValidation)
	}
	if !core.AllowedImageTypes[image.ContentType] {
		return fmt.Errorf("%w: invalid image file type, only JPEG, PNG and GIF are allowed", core.ErrValidation)
	}
	if image.Size > core.MaxImageSize {
		return fmt.Errorf("%w: file size exceeds 10MB limit", core.ErrValidation)
	}
	return nil
}
