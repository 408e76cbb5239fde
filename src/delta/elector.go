package delta

import (
	"bytes"
	"sync"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// RoundTally counts the votes of one round. A voter is counted once.
type RoundTally struct {
	Counts     map[string]int    // candidate hash hex => votes
	Candidates map[string][]byte // candidate hash hex => candidate hash
	Voters     map[string]bool
}

func newRoundTally() *RoundTally {
	return &RoundTally{
		Counts:     make(map[string]int),
		Candidates: make(map[string][]byte),
		Voters:     make(map[string]bool),
	}
}

// Winner returns the candidate with the highest count. Ties go to the lowest
// hash.
func (t *RoundTally) Winner() ([]byte, bool) {
	var winner []byte
	best := 0
	for hex, count := range t.Counts {
		hash := t.Candidates[hex]
		if count > best || (count == best && bytes.Compare(hash, winner) < 0) {
			winner = hash
			best = count
		}
	}
	return winner, winner != nil
}

// Elector tallies the favourites gossiped by the producers.
type Elector struct {
	alg       crypto.HashAlgorithm
	producers Producers

	mu      sync.Mutex
	tallies *expirable.LRU[string, *RoundTally]

	logger *logrus.Entry
}

// NewElector ...
func NewElector(alg crypto.HashAlgorithm,
	producers Producers,
	conf CacheConfig,
	logger *logrus.Entry) *Elector {

	return &Elector{
		alg:       alg,
		producers: producers,
		tallies:   expirable.NewLRU[string, *RoundTally](conf.Rounds, nil, conf.TTL),
		logger:    logger.WithField("component", "elector"),
	}
}

// Observe counts a vote. It returns false if the vote was dropped.
func (e *Elector) Observe(vote *FavouriteVote) bool {
	logger := e.logger.WithField("voter", vote.VoterID)

	if vote.Candidate == nil {
		logger.Debug("Dropping vote without candidate")
		return false
	}
	if err := vote.Candidate.Validate(e.alg); err != nil {
		logger.WithError(err).Debug("Dropping vote")
		return false
	}

	authorized := e.producers.CurrentAuthorizedProducers()
	if !contains(authorized, vote.VoterID) {
		logger.Warn("Dropping vote from unauthorized voter")
		return false
	}
	if !contains(authorized, vote.Candidate.ProducerID) {
		logger.WithField("producer", vote.Candidate.ProducerID).Warn("Dropping vote for unauthorized producer")
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := vote.Candidate.PreviousHashHex()
	tally, ok := e.tallies.Get(key)
	if !ok {
		tally = newRoundTally()
		e.tallies.Add(key, tally)
	}

	if tally.Voters[vote.VoterID] {
		logger.Debug("Dropping repeated vote")
		return false
	}

	hex := vote.Candidate.HashHex()
	tally.Voters[vote.VoterID] = true
	tally.Candidates[hex] = vote.Candidate.Hash
	tally.Counts[hex]++

	logger.WithFields(logrus.Fields{
		"candidate": hex,
		"votes":     tally.Counts[hex],
	}).Debug("Vote counted")

	return true
}

// GetWinner returns the hash of the winning candidate of the round anchored on
// previousHash, or false if no vote was counted.
func (e *Elector) GetWinner(previousHash []byte) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tally, ok := e.tallies.Get(common.EncodeToString(previousHash))
	if !ok {
		return nil, false
	}
	return tally.Winner()
}

// Votes returns a copy of the counts of a round.
func (e *Elector) Votes(previousHash []byte) map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := make(map[string]int)
	if tally, ok := e.tallies.Get(common.EncodeToString(previousHash)); ok {
		for k, v := range tally.Counts {
			res[k] = v
		}
	}
	return res
}

// EvictRound drops the tally of a round.
func (e *Elector) EvictRound(previousHash []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tallies.Remove(common.EncodeToString(previousHash))
}
