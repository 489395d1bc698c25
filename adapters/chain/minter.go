// Package chain submits ERC-721 mint transactions.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/layer-3/mintbox/core"
)

const mintableABI = `[
  {"type":"function","name":"safeMint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Backend is the subset of an Ethereum client the minter needs
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Minter calls safeMint on a configured ERC-721 contract
type Minter struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	timeout  time.Duration
}

// Dial connects to rpcURL and returns a minter for contract
func Dial(ctx context.Context, rpcURL, privateKey, contract string, chainID int64) (*Minter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: invalid minter private key", core.ErrConfiguration)
	}
	return NewMinter(client, key, common.HexToAddress(contract), big.NewInt(chainID))
}

// NewMinter creates a minter over an existing backend
func NewMinter(backend Backend, key *ecdsa.PrivateKey, contract common.Address, chainID *big.Int) (*Minter, error) {
	parsed, err := abi.JSON(strings.NewReader(mintableABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}
	return &Minter{
		backend:  backend,
		contract: bind.NewBoundContract(contract, parsed, backend, backend, backend),
		address:  contract,
		key:      key,
		chainID:  chainID,
		timeout:  3 * time.Minute,
	}, nil
}

// Mint submits safeMint(to, tokenURI) and waits for the receipt
func (m *Minter) Mint(ctx context.Context, to, tokenURI string) (core.MintReceipt, error) {
	if !common.IsHexAddress(to) {
		return core.MintReceipt{}, fmt.Errorf("%w: recipient is not an address", core.ErrValidation)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(m.key, m.chainID)
	if err != nil {
		return core.MintReceipt{}, fmt.Errorf("%w: %v", core.ErrMinting, err)
	}
	opts.Context = ctx

	tx, err := m.contract.Transact(opts, "safeMint", common.HexToAddress(to), tokenURI)
	if err != nil {
		return core.MintReceipt{}, fmt.Errorf("%w: failed to send transaction: %v", core.ErrMinting, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, m.backend, tx)
	if err != nil {
		return core.MintReceipt{}, fmt.Errorf("%w: tx %s not mined: %v", core.ErrMinting, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return core.MintReceipt{}, fmt.Errorf("%w: tx %s reverted", core.ErrMinting, tx.Hash().Hex())
	}

	tokenID, err := TokenIDFromReceipt(receipt, m.address)
	if err != nil {
		return core.MintReceipt{}, fmt.Errorf("%w: %v", core.ErrMinting, err)
	}

	return core.MintReceipt{
		TxHash:          tx.Hash().Hex(),
		TokenID:         tokenID,
		ContractAddress: strings.ToLower(m.address.Hex()),
	}, nil
}

// TokenIDFromReceipt extracts the id of the token minted by contract from its Transfer log
func TokenIDFromReceipt(receipt *types.Receipt, contract common.Address) (int64, error) {
	for _, l := range receipt.Logs {
		if l.Address != contract || len(l.Topics) != 4 || l.Topics[0] != transferTopic {
			continue
		}
		// mints transfer from the zero address
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[3].Bytes())
		if !id.IsInt64() {
			return 0, fmt.Errorf("token id %s overflows int64", id)
		}
		return id.Int64(), nil
	}
	return 0, fmt.Errorf("no mint transfer log in receipt")
}

// DisabledMinter is used when no chain is configured
type DisabledMinter struct{}

func (DisabledMinter) Mint(context.Context, string, string) (core.MintReceipt, error) {
	return core.MintReceipt{}, core.ErrMintingDisabled
}
