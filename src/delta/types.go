package delta

import (
	"bytes"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
)

// CandidateDelta is a proposal for the delta that follows PreviousHash.
type CandidateDelta struct {
	Hash               []byte
	PreviousHash       []byte
	ProducerID         string
	TransactionSetRoot []byte
}

// CandidateHash derives the hash of a candidate. The producer ID is part of
// the preimage so two producers with identical mempools never share a hash.
func CandidateHash(alg crypto.HashAlgorithm, previousHash []byte, producerID string, root []byte) []byte {
	return alg.Sum(previousHash, []byte(producerID), root)
}

// NewCandidateDelta creates a CandidateDelta and computes its hash.
func NewCandidateDelta(alg crypto.HashAlgorithm, previousHash []byte, producerID string, root []byte) *CandidateDelta {
	return &CandidateDelta{
		Hash:               CandidateHash(alg, previousHash, producerID, root),
		PreviousHash:       previousHash,
		ProducerID:         producerID,
		TransactionSetRoot: root,
	}
}

// HashHex ...
func (c *CandidateDelta) HashHex() string {
	return common.EncodeToString(c.Hash)
}

// PreviousHashHex ...
func (c *CandidateDelta) PreviousHashHex() string {
	return common.EncodeToString(c.PreviousHash)
}

// Validate checks the lengths of the hashes and, when the transaction set
// root is known, that Hash was derived from the other fields.
func (c *CandidateDelta) Validate(alg crypto.HashAlgorithm) error {
	if len(c.Hash) != alg.Size() || len(c.PreviousHash) != alg.Size() {
		return ErrMalformedHash
	}
	if c.TransactionSetRoot != nil &&
		!bytes.Equal(c.Hash, CandidateHash(alg, c.PreviousHash, c.ProducerID, c.TransactionSetRoot)) {
		return ErrMalformedHash
	}
	return nil
}

// Delta is the full body of a delta. It is cached by the producer that built it
// and written to the DFS when it wins its round.
type Delta struct {
	PreviousHash       []byte
	ProducerID         string
	TransactionSetRoot []byte
	Transactions       []*Transaction
	TimeStamp          int64
}

// Marshal returns the canonical encoding of the Delta.
func (d *Delta) Marshal() ([]byte, error) {
	return marshal(d)
}

// Unmarshal ...
func (d *Delta) Unmarshal(data []byte) error {
	return unmarshal(data, d)
}

// FavouriteVote is one voter's endorsement of a candidate.
type FavouriteVote struct {
	Candidate *CandidateDelta
	VoterID   string
}
