package delta

import (
	"bytes"
	"sort"

	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
)

// Producers is the read side of the authorized producer set.
type Producers interface {
	CurrentAuthorizedProducers() []string
}

// Ranker orders the authorized producers of a round. It holds no state other
// than the hash algorithm, so every node computes the same order from the same
// inputs.
type Ranker struct {
	alg crypto.HashAlgorithm
}

// NewRanker ...
func NewRanker(alg crypto.HashAlgorithm) *Ranker {
	return &Ranker{alg: alg}
}

// Digest is the ranking key of a producer for the round anchored on
// previousHash. Lower digests rank first.
func (r *Ranker) Digest(producerID string, previousHash []byte) []byte {
	return r.alg.Sum([]byte(producerID), previousHash)
}

type rankedProducer struct {
	id     string
	digest []byte
}

// Rank returns the producers sorted ascending by digest. Duplicates are kept
// and appear next to each other.
func (r *Ranker) Rank(previousHash []byte, producers []string) ([]string, error) {
	if len(producers) == 0 {
		return nil, ErrEmptyProducerSet
	}

	ranked := make([]rankedProducer, len(producers))
	for i, p := range producers {
		ranked[i] = rankedProducer{id: p, digest: r.Digest(p, previousHash)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return bytes.Compare(ranked[i].digest, ranked[j].digest) < 0
	})

	res := make([]string, len(ranked))
	for i, rp := range ranked {
		res[i] = rp.id
	}
	return res, nil
}

// ValidateProducers reports configuration errors in a producer set.
func ValidateProducers(producers []string) error {
	if len(producers) == 0 {
		return ErrEmptyProducerSet
	}
	seen := make(map[string]bool, len(producers))
	for _, p := range producers {
		if seen[p] {
			return ErrDuplicateProducer
		}
		seen[p] = true
	}
	return nil
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
