package service

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/mintbox/adapters/store"
	"github.com/layer-3/mintbox/adapters/tokenizer"
	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/internal/eth"
	"github.com/layer-3/mintbox/internal/log"
)

type recordingPublisher struct {
	mu      sync.Mutex
	logouts []string
	nfts    []string
	err     error
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, address)
	return p.err
}

func (p *recordingPublisher) PublishNFTCreated(ctx context.Context, nft *core.NFT) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nfts = append(p.nfts, nft.ID)
	return p.err
}

type authFixture struct {
	svc        *AuthService
	identities *store.MemoryIdentityStore
	sessions   *store.MemorySessionStore
	tokens     *tokenizer.JWTTokenizer
	events     *recordingPublisher
	now        time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		identities: store.NewMemoryIdentityStore(),
		events:     &recordingPublisher{},
		now:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.sessions = store.NewMemorySessionStore().WithClock(clock)

	tk, err := tokenizer.NewJWTTokenizer("access-secret", "refresh-secret")
	require.NoError(t, err)
	f.tokens = tk.WithClock(clock)

	f.svc = NewAuthService(f.identities, f.sessions, eth.NewVerifier(), f.tokens, f.events, log.Nop())
	return f
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w wallet) sign(t *testing.T, nonce string) string {
	t.Helper()
	sig, err := eth.SignPersonalMessage(w.key, eth.NonceMessage(nonce))
	require.NoError(t, err)
	return sig
}
