package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBlockchain is the only network assets are minted on
	DefaultBlockchain = "Sepolia"

	// MaxImageSize is the upper bound for an uploaded NFT image
	MaxImageSize = 10 << 20

	maxNameLength        = 256
	maxDescriptionLength = 2000
)

// AllowedImageTypes lists the accepted image MIME types
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

const ipfsScheme = "ipfs://"

// NFT is a minted (or mint-pending) asset record
type NFT struct {
	ID                 string
	TokenID            *int64
	ContractAddress    string
	Blockchain         string
	MetadataURL        string
	MetadataGatewayURL string
	ImageURL           string
	ImageGatewayURL    string
	Name               string
	Description        string
	OwnerAddress       string
	CreatorAddress     string
	Price              decimal.Decimal
	TxHash             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NFTInput is the user-supplied part of a mint request
type NFTInput struct {
	Name           string
	Description    string
	CreatorAddress string
	Price          decimal.Decimal
}

// Validate checks field bounds and normalizes addresses in place
func (in *NFTInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.CreatorAddress = NormalizeAddress(in.CreatorAddress)

	switch {
	case in.Name == "" || len(in.Name) > maxNameLength:
		return fmt.Errorf("%w: name must be 1-%d characters", ErrValidation, maxNameLength)
	case in.Description == "" || len(in.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description must be 1-%d characters", ErrValidation, maxDescriptionLength)
	case in.CreatorAddress == "":
		return fmt.Errorf("%w: creatorAddress is required", ErrValidation)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must be a valid non-negative number", ErrValidation)
	}
	return nil
}

// Metadata is the ERC-721 metadata document pinned next to the image
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// PinnedObject identifies content stored on IPFS
type PinnedObject struct {
	CID        string
	URL        string // ipfs://<cid>
	GatewayURL string // https://ipfs.io/ipfs/<cid>
}

// IsIPFSURL reports whether s is exactly ipfs://<cid> with a well-formed CID
func IsIPFSURL(s string) bool {
	rest, ok := strings.CutPrefix(s, ipfsScheme)
	if !ok {
		return false
	}
	_, err := cid.Decode(rest)
	return err == nil
}

// MintReceipt describes a confirmed on-chain mint
type MintReceipt struct {
	TxHash          string
	TokenID         int64
	ContractAddress string
}
