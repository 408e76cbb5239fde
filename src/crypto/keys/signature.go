package keys

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
)

// Signature is a DER-encoded secp256k1 signature together with the
// uncompressed public key of the signer, which is all a receiver needs to
// verify it.
type Signature struct {
	PublicKey []byte
	RawBytes  []byte
}

// Signer produces signatures on behalf of the local node.
type Signer interface {
	Sign(data []byte) (Signature, error)
	PublicKeyHex() string
}

// ECDSASigner implements Signer with a secp256k1 private key.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
	pub []byte
}

// NewECDSASigner wraps a private key.
func NewECDSASigner(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{
		key: key,
		pub: FromPublicKey(&key.PublicKey),
	}
}

// Sign hashes data with SHA256 and signs the digest.
func (s *ECDSASigner) Sign(data []byte) (Signature, error) {
	sig, err := (*btcec.PrivateKey)(s.key).Sign(crypto.SHA256Sum(data))
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		PublicKey: s.pub,
		RawBytes:  sig.Serialize(),
	}, nil
}

// PublicKeyHex implements Signer.
func (s *ECDSASigner) PublicKeyHex() string {
	return PublicKeyHex(&s.key.PublicKey)
}

// Verify checks that sig is a valid signature of data by the owner of
// sig.PublicKey. Malformed keys or signatures simply fail verification.
func Verify(sig Signature, data []byte) bool {
	pub, err := btcec.ParsePubKey(sig.PublicKey, btcec.S256())
	if err != nil {
		return false
	}
	s, err := btcec.ParseDERSignature(sig.RawBytes, btcec.S256())
	if err != nil {
		return false
	}
	return s.Verify(crypto.SHA256Sum(data), pub)
}
