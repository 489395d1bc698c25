package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/layer-3/mintbox/core"
)

// MemoryNFTStore is an in-memory implementation of the NFTStore interface
type MemoryNFTStore struct {
	nfts map[string]*core.NFT
	mu   sync.RWMutex
}

// NewMemoryNFTStore creates a new in-memory NFT store
func NewMemoryNFTStore() *MemoryNFTStore {
	return &MemoryNFTStore{
		nfts: make(map[string]*core.NFT),
	}
}

func (s *MemoryNFTStore) Create(ctx context.Context, n *core.NFT) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nfts[n.ID]; ok {
		return fmt.Errorf("failed to create nft: %w", core.ErrConflict)
	}
	for _, existing := range s.nfts {
		if existing.MetadataURL == n.MetadataURL && existing.ImageURL == n.ImageURL {
			return fmt.Errorf("failed to create nft: %w", core.ErrConflict)
		}
	}
	cp := *n
	s.nfts[n.ID] = &cp
	return nil
}

func (s *MemoryNFTStore) FindByID(ctx context.Context, id string) (*core.NFT, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.nfts[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, fmt.Errorf("failed to get nft: %w", core.ErrNotFound)
}

func (s *MemoryNFTStore) FindByURLs(ctx context.Context, metadataURL, imageURL string) (*core.NFT, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nfts {
		if n.MetadataURL == metadataURL && n.ImageURL == imageURL {
			cp := *n
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("failed to get nft: %w", core.ErrNotFound)
}

func (s *MemoryNFTStore) ListByOwner(ctx context.Context, owner string) ([]*core.NFT, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner = core.NormalizeAddress(owner)
	out := make([]*core.NFT, 0)
	for _, n := range s.nfts {
		if n.OwnerAddress == owner {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryNFTStore) SetMinted(ctx context.Context, id string, receipt core.MintReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nfts[id]
	if !ok {
		return fmt.Errorf("failed to record mint: %w", core.ErrNotFound)
	}
	tokenID := receipt.TokenID
	n.TokenID = &tokenID
	n.TxHash = receipt.TxHash
	n.ContractAddress = core.NormalizeAddress(receipt.ContractAddress)
	n.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryNFTStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nfts[id]; !ok {
		return fmt.Errorf("failed to delete nft: %w", core.ErrNotFound)
	}
	delete(s.nfts, id)
	return nil
}
