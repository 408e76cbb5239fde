package delta

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// FavouriteRule decides which observed candidate becomes a node's favourite.
type FavouriteRule string

const (
	// RankRule prefers the candidate of the best ranked producer, and the
	// lower candidate hash between two candidates of the same producer.
	RankRule FavouriteRule = "rank"
	// FirstSeenRule keeps the first valid candidate observed in the round.
	FirstSeenRule FavouriteRule = "first-seen"
)

// ParseFavouriteRule ...
func ParseFavouriteRule(name string) (FavouriteRule, error) {
	switch FavouriteRule(name) {
	case RankRule, FirstSeenRule:
		return FavouriteRule(name), nil
	case "":
		return RankRule, nil
	default:
		return "", fmt.Errorf("unknown favourite rule %q", name)
	}
}

// CacheConfig bounds the per-round caches of the Voter and the Elector.
type CacheConfig struct {
	Rounds int
	TTL    time.Duration
}

// Voter keeps at most one favourite candidate per previous hash.
type Voter struct {
	alg       crypto.HashAlgorithm
	ranker    *Ranker
	producers Producers
	rule      FavouriteRule

	mu         sync.Mutex
	favourites *expirable.LRU[string, *CandidateDelta]

	logger *logrus.Entry
}

// NewVoter ...
func NewVoter(alg crypto.HashAlgorithm,
	producers Producers,
	rule FavouriteRule,
	conf CacheConfig,
	logger *logrus.Entry) *Voter {

	return &Voter{
		alg:        alg,
		ranker:     NewRanker(alg),
		producers:  producers,
		rule:       rule,
		favourites: expirable.NewLRU[string, *CandidateDelta](conf.Rounds, nil, conf.TTL),
		logger:     logger.WithField("component", "voter"),
	}
}

// Observe considers a candidate for the favourite of its round. It returns
// true if the candidate became the favourite. Invalid candidates are dropped.
func (v *Voter) Observe(candidate *CandidateDelta) bool {
	if err := candidate.Validate(v.alg); err != nil {
		v.logger.WithError(err).WithField("producer", candidate.ProducerID).Debug("Dropping candidate")
		return false
	}

	if !contains(v.producers.CurrentAuthorizedProducers(), candidate.ProducerID) {
		v.logger.WithField("producer", candidate.ProducerID).Warn("Dropping candidate from unauthorized producer")
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := candidate.PreviousHashHex()
	current, ok := v.favourites.Get(key)
	if ok && !v.better(candidate, current) {
		return false
	}

	v.favourites.Add(key, candidate)

	v.logger.WithFields(logrus.Fields{
		"candidate": candidate.HashHex(),
		"producer":  candidate.ProducerID,
		"previous":  key,
	}).Debug("New favourite")

	return true
}

func (v *Voter) better(candidate, current *CandidateDelta) bool {
	if v.rule == FirstSeenRule {
		return false
	}

	c := bytes.Compare(
		v.ranker.Digest(candidate.ProducerID, candidate.PreviousHash),
		v.ranker.Digest(current.ProducerID, current.PreviousHash))
	if c != 0 {
		return c < 0
	}
	return bytes.Compare(candidate.Hash, current.Hash) < 0
}

// TryGetFavourite returns the favourite of the round anchored on previousHash,
// if any.
func (v *Voter) TryGetFavourite(previousHash []byte) (*CandidateDelta, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.favourites.Get(common.EncodeToString(previousHash))
}

// EvictRound forgets the favourite of a round.
func (v *Voter) EvictRound(previousHash []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.favourites.Remove(common.EncodeToString(previousHash))
}
