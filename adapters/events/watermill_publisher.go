package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/mintbox/core"
)

const (
	TopicLogout     = "mintbox.logout"
	TopicNFTCreated = "mintbox.nft.created"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address    string    `json:"address"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NFTCreatedEvent announces a newly recorded asset
type NFTCreatedEvent struct {
	ID           string `json:"id"`
	TokenID      *int64 `json:"token_id,omitempty"`
	OwnerAddress string `json:"owner_address"`
	MetadataURL  string `json:"metadata_url"`
	ImageURL     string `json:"image_url"`
	Price        string `json:"price"`
	TxHash       string `json:"tx_hash,omitempty"`
	Blockchain   string `json:"blockchain"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(ctx, TopicLogout, LogoutEvent{
		Address:    address,
		OccurredAt: p.now().UTC(),
	})
}

// PublishNFTCreated publishes an nft-created event
func (p *WatermillPublisher) PublishNFTCreated(ctx context.Context, nft *core.NFT) error {
	return p.publish(ctx, TopicNFTCreated, NFTCreatedEvent{
		ID:           nft.ID,
		TokenID:      nft.TokenID,
		OwnerAddress: nft.OwnerAddress,
		MetadataURL:  nft.MetadataURL,
		ImageURL:     nft.ImageURL,
		Price:        nft.Price.String(),
		TxHash:       nft.TxHash,
		Blockchain:   nft.Blockchain,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishLogout(context.Context, string) error { return nil }
func (NopPublisher) PublishNFTCreated(context.Context, *core.NFT) error { return nil }
