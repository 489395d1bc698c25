// Package eth holds the Ethereum primitives used by wallet login:
// address validation and EIP-191 personal-sign recovery.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

// NonceMessage builds the exact challenge text a wallet signs to log in
func NonceMessage(nonce string) string {
	return "Sign this message to log in. Nonce: " + nonce
}

// IsAddress reports whether s is a 20-byte hex address with 0x prefix
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// Verifier recovers personal-sign signatures over the login challenge
type Verifier struct{}

// NewVerifier creates a signature verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyNonceSignature reports whether signature over NonceMessage(nonce) was produced by address.
// Malformed input is a failed verification, never an error.
func (v *Verifier) VerifyNonceSignature(address, signature, nonce string) bool {
	signer, err := RecoverPersonalSigner(NonceMessage(nonce), signature)
	if err != nil {
		return false
	}
	return strings.EqualFold(signer.Hex(), strings.TrimSpace(address))
}

// RecoverPersonalSigner returns the address that produced an EIP-191 signature over message
func RecoverPersonalSigner(message, signature string) (common.Address, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}

	// Wallets emit V as 27/28; SigToPub wants 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignPersonalMessage signs message the way wallets do for personal_sign (V in 27/28)
func SignPersonalMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
