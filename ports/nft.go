package ports

import (
	"context"
	"io"

	"github.com/layer-3/mintbox/core"
)

// Pinner uploads content to IPFS and returns its content identifier
type Pinner interface {
	PinFile(ctx context.Context, name, contentType string, r io.Reader) (core.PinnedObject, error)
	PinJSON(ctx context.Context, name string, v any) (core.PinnedObject, error)
}

// Minter submits a mint transaction for tokenURI to the configured contract
type Minter interface {
	Mint(ctx context.Context, to, tokenURI string) (core.MintReceipt, error)
}
