package ports

import (
	"context"

	"github.com/layer-3/mintbox/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address string) error
	PublishNFTCreated(ctx context.Context, nft *core.NFT) error
}
