package ports

import "github.com/layer-3/mintbox/core"

// Tokenizer converts identity snapshots to signed session tokens and back
type Tokenizer interface {
	IssueAccessToken(identity core.IdentitySnapshot) (core.IssuedToken, error)
	IssueRefreshToken(identity core.IdentitySnapshot) (core.IssuedToken, error)

	VerifyAccessToken(token string) (*core.IdentitySnapshot, error)
	VerifyRefreshToken(token string) (*core.IdentitySnapshot, error)
}

// SignatureVerifier checks that the nonce challenge was signed by address
type SignatureVerifier interface {
	VerifyNonceSignature(address, signature, nonce string) bool
}
