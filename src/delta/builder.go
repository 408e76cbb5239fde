package delta

import (
	"sync"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/sirupsen/logrus"
)

// Mempool is the read side of the pool of pending transactions.
type Mempool interface {
	Snapshot() []*Transaction
}

// BuilderConfig bounds the content of a candidate. A zero value disables the
// corresponding bound.
type BuilderConfig struct {
	MaxTransactions int
	MaxBytes        int
}

// Builder assembles candidate deltas from the mempool and keeps their bodies
// until the round is evicted.
type Builder struct {
	selfID    string
	alg       crypto.HashAlgorithm
	mempool   Mempool
	producers Producers
	conf      BuilderConfig

	mu     sync.Mutex
	bodies map[string]*Delta   // candidate hash hex => body
	rounds map[string][]string // previous hash hex => candidate hashes hex

	logger *logrus.Entry
}

// NewBuilder ...
func NewBuilder(selfID string,
	alg crypto.HashAlgorithm,
	mempool Mempool,
	producers Producers,
	conf BuilderConfig,
	logger *logrus.Entry) *Builder {

	return &Builder{
		selfID:    selfID,
		alg:       alg,
		mempool:   mempool,
		producers: producers,
		conf:      conf,
		bodies:    make(map[string]*Delta),
		rounds:    make(map[string][]string),
		logger:    logger.WithField("component", "builder"),
	}
}

// Build creates this node's candidate for the round anchored on previousHash.
// Two nodes holding the same mempool snapshot select the same transactions in
// the same order.
func (b *Builder) Build(previousHash []byte) (*CandidateDelta, error) {
	if !contains(b.producers.CurrentAuthorizedProducers(), b.selfID) {
		return nil, ErrNotProducer
	}
	if len(previousHash) != b.alg.Size() {
		return nil, ErrMalformedHash
	}

	selected := b.selectTransactions(SortTransactions(b.mempool.Snapshot()))

	root, err := TransactionSetRoot(b.alg, selected)
	if err != nil {
		return nil, err
	}

	candidate := NewCandidateDelta(b.alg, previousHash, b.selfID, root)

	body := &Delta{
		PreviousHash:       previousHash,
		ProducerID:         b.selfID,
		TransactionSetRoot: root,
		Transactions:       selected,
		TimeStamp:          time.Now().UnixNano(),
	}

	b.mu.Lock()
	hex := candidate.HashHex()
	if _, ok := b.bodies[hex]; !ok {
		prevHex := candidate.PreviousHashHex()
		b.rounds[prevHex] = append(b.rounds[prevHex], hex)
	}
	b.bodies[hex] = body
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"candidate":    hex,
		"previous":     candidate.PreviousHashHex(),
		"transactions": len(selected),
	}).Debug("Built candidate")

	return candidate, nil
}

func (b *Builder) selectTransactions(sorted []*Transaction) []*Transaction {
	res := []*Transaction{}
	size := 0
	for _, tx := range sorted {
		if b.conf.MaxTransactions > 0 && len(res) >= b.conf.MaxTransactions {
			break
		}
		if b.conf.MaxBytes > 0 && size+tx.Size() > b.conf.MaxBytes {
			break
		}
		size += tx.Size()
		res = append(res, tx)
	}
	return res
}

// Body returns the body of a candidate built by this node.
func (b *Builder) Body(candidateHash []byte) (*Delta, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.bodies[common.EncodeToString(candidateHash)]
	return body, ok
}

// EvictRound drops the bodies of every candidate built on previousHash.
func (b *Builder) EvictRound(previousHash []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prevHex := common.EncodeToString(previousHash)
	for _, h := range b.rounds[prevHex] {
		delete(b.bodies, h)
	}
	delete(b.rounds, prevHex)
}
