package node

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/config"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/catalyst-network/Catalyst-sub014/src/cycle"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/dfs"
	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
	"github.com/catalyst-network/Catalyst-sub014/src/mempool"
	"github.com/catalyst-network/Catalyst-sub014/src/net"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PeerProvider is the membership collaborator of a Node.
type PeerProvider interface {
	peers.Provider
	ByID(id string) (*peers.Peer, bool)
}

// counters are the cumulative statistics of a Node.
type counters struct {
	candidatesBuilt     uint64
	votesCast           uint64
	roundsCommitted     uint64
	roundsWithoutWinner uint64
	advancesAccepted    uint64
	advancesRejected    uint64
	messagesDropped     uint64
}

// Node is the composition root of the consensus core. It reacts to the phase
// changes of a cycle scheduler and to inbound gossip.
type Node struct {
	// The node's state (Running or Shutdown) and the goroutines it launched
	state

	conf   *config.Config
	logger *logrus.Entry

	id  string
	alg crypto.HashAlgorithm

	peers   PeerProvider
	mempool *mempool.Mempool
	store   dfs.Store
	trans   net.Transport
	netCh   <-chan net.RPC

	chain       *delta.ChainTracker
	builder     *delta.Builder
	voter       *delta.Voter
	elector     *delta.Elector
	broadcaster *gossip.Broadcaster
	scheduler   *cycle.Scheduler

	handlers map[gossip.Kind]handler

	// anchor is the tip captured at the start of the current cycle. The
	// later phases of the cycle work on it even if the tip moves.
	anchorLock sync.Mutex
	anchor     []byte

	// rounds maps the hex of a round anchor to the correlation ids of the
	// messages of that round.
	roundsLock sync.Mutex
	rounds     *expirable.LRU[string, []string]

	counters counters

	runWG      sync.WaitGroup
	cancelLock sync.Mutex
	cancel     context.CancelFunc
	shutdownCh chan struct{}

	start time.Time
}

// NewNode wires the consensus components of a node. The chain tracker is
// passed in so that the caller can restore it from a persisted tip. Metrics
// are registered on registry when it is not nil.
func NewNode(conf *config.Config,
	signer keys.Signer,
	peerProvider PeerProvider,
	pool *mempool.Mempool,
	store dfs.Store,
	chain *delta.ChainTracker,
	trans net.Transport,
	registry prometheus.Registerer) (*Node, error) {

	alg, err := conf.Hash()
	if err != nil {
		return nil, err
	}

	rule, err := delta.ParseFavouriteRule(conf.FavouriteRule)
	if err != nil {
		return nil, err
	}

	if err := delta.ValidateProducers(peerProvider.CurrentAuthorizedProducers()); err != nil {
		return nil, errors.Wrap(err, "validating producer set")
	}

	gossipConf := conf.GossipConfig()
	if err := gossipConf.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating gossip config")
	}

	id := signer.PublicKeyHex()

	logger := conf.Logger().WithFields(logrus.Fields{
		"this_id": id,
		"moniker": conf.Moniker,
	})

	scheduler, err := cycle.NewScheduler(conf.Timing(), conf.AlignCycles, chain, logger)
	if err != nil {
		return nil, err
	}

	cacheConf := conf.CacheConfig()

	node := &Node{
		conf:        conf,
		logger:      logger,
		id:          id,
		alg:         alg,
		peers:       peerProvider,
		mempool:     pool,
		store:       store,
		trans:       trans,
		netCh:       trans.Consumer(),
		chain:       chain,
		builder:     delta.NewBuilder(id, alg, pool, peerProvider, conf.BuilderConfig(), logger),
		voter:       delta.NewVoter(alg, peerProvider, rule, cacheConf, logger),
		elector:     delta.NewElector(alg, peerProvider, cacheConf, logger),
		broadcaster: gossip.NewBroadcaster(gossipConf, signer, peerProvider, trans, logger),
		scheduler:   scheduler,
		rounds:      expirable.NewLRU[string, []string](cacheConf.Rounds, nil, cacheConf.TTL),
		shutdownCh:  make(chan struct{}),
		start:       time.Now(),
	}

	node.handlers = node.makeHandlers()

	if registry != nil {
		if err := registerMetrics(registry, node); err != nil {
			return nil, errors.Wrap(err, "registering metrics")
		}
	}

	node.setState(Running)

	return node, nil
}

/*******************************************************************************
Public Methods
*******************************************************************************/

// Run follows the cycle until ctx is cancelled or the node is shut down. It
// blocks.
func (n *Node) Run(ctx context.Context) {
	if n.getState() == Shutdown {
		return
	}

	n.runWG.Add(1)
	defer n.runWG.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.cancelLock.Lock()
	n.cancel = cancel
	n.cancelLock.Unlock()

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- n.scheduler.Run(ctx)
	}()

	n.logger.WithField("tip", common.EncodeToString(n.chain.CurrentTip())).Info("Running")

	phaseCh := n.scheduler.PhaseChanges()
	shutdownCh := n.shutdownCh

	for {
		select {
		case pc, ok := <-phaseCh:
			if !ok {
				if err := <-schedulerDone; err != nil && err != context.Canceled {
					n.logger.WithError(err).Error("Scheduler stopped")
				}
				return
			}
			n.onPhase(pc)
		case rpc := <-n.netCh:
			if !n.goFunc(func() { n.processRPC(rpc) }) {
				rpc.Respond(nil, fmt.Errorf("node is busy"))
			}
		case <-shutdownCh:
			cancel()
			shutdownCh = nil
		}
	}
}

// Shutdown stops the cycle, waits for background work, and closes the
// transport and the store.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Info("Shutdown")

	n.setState(Shutdown)
	close(n.shutdownCh)

	n.cancelLock.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.cancelLock.Unlock()

	n.runWG.Wait()
	n.waitRoutines()

	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Error("Closing transport")
	}

	if err := n.store.Close(); err != nil {
		n.logger.WithError(err).Error("Closing store")
	}
}

// ID returns the public key of the node, which identifies it as a peer and as
// a producer.
func (n *Node) ID() string {
	return n.id
}

// GetState returns the state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

// Tip returns the current tip of the chain.
func (n *Node) Tip() []byte {
	return n.chain.CurrentTip()
}

// GetPeers returns the current peer set, including the local node.
func (n *Node) GetPeers() []*peers.Peer {
	res := []*peers.Peer{}
	if self, ok := n.peers.ByID(n.id); ok {
		res = append(res, self)
	}
	return append(res, n.peers.CurrentPeers()...)
}

// GetDelta returns a committed delta by content hash.
func (n *Node) GetDelta(hash []byte) (*delta.Delta, error) {
	return n.store.Get(hash)
}

// GetWinner returns the current leader of the round anchored on
// previousHash, from the votes observed so far.
func (n *Node) GetWinner(previousHash []byte) ([]byte, bool) {
	return n.elector.GetWinner(previousHash)
}

// SubmitTransaction adds a transaction to the mempool. It returns false if the
// transaction was already pending.
func (n *Node) SubmitTransaction(tx *delta.Transaction) (bool, error) {
	return n.mempool.Add(tx)
}

// GetStats returns information about the node.
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)
	gossipStats := n.broadcaster.Stats()

	u := strconv.FormatUint

	return map[string]string{
		"id":                    n.id,
		"moniker":               n.conf.Moniker,
		"state":                 n.getState().String(),
		"tip":                   common.EncodeToString(n.chain.CurrentTip()),
		"num_peers":             strconv.Itoa(len(n.peers.CurrentPeers())),
		"num_producers":         strconv.Itoa(len(n.peers.CurrentAuthorizedProducers())),
		"mempool_size":          strconv.Itoa(n.mempool.Len()),
		"candidates_built":      u(atomic.LoadUint64(&n.counters.candidatesBuilt), 10),
		"votes_cast":            u(atomic.LoadUint64(&n.counters.votesCast), 10),
		"rounds_committed":      u(atomic.LoadUint64(&n.counters.roundsCommitted), 10),
		"rounds_without_winner": u(atomic.LoadUint64(&n.counters.roundsWithoutWinner), 10),
		"advances_accepted":     u(atomic.LoadUint64(&n.counters.advancesAccepted), 10),
		"advances_rejected":     u(atomic.LoadUint64(&n.counters.advancesRejected), 10),
		"messages_dropped":      u(atomic.LoadUint64(&n.counters.messagesDropped), 10),
		"gossip_records":        strconv.Itoa(n.broadcaster.Len()),
		"gossip_sent":           u(gossipStats.Sent, 10),
		"gossip_failed":         u(gossipStats.Failed, 10),
		"gossip_received":       u(gossipStats.Received, 10),
		"gossip_suppressed":     u(gossipStats.Suppressed, 10),
		"time_elapsed":          strconv.FormatFloat(timeElapsed.Seconds(), 'f', 2, 64),
	}
}

/*******************************************************************************
Cycle
*******************************************************************************/

func (n *Node) onPhase(pc cycle.PhaseChange) {
	n.logger.WithField("phase", pc.String()).Debug("Phase change")

	switch {
	case pc.Is(cycle.Construction, cycle.Producing):
		n.setAnchor(pc.PreviousHash)
		n.produce(pc.PreviousHash)
	case pc.Is(cycle.Campaigning, cycle.Producing):
		if anchor := n.getAnchor(); anchor != nil {
			n.campaign(anchor)
		}
	case pc.Is(cycle.Voting, cycle.Producing):
		if anchor := n.getAnchor(); anchor != nil {
			n.elect(anchor)
		}
	case pc.Is(cycle.Voting, cycle.Collating):
		if anchor := n.getAnchor(); anchor != nil {
			n.conclude(anchor)
		}
	}
}

// produce builds this node's candidate, votes for it locally, and gossips it.
func (n *Node) produce(previousHash []byte) {
	candidate, err := n.builder.Build(previousHash)
	if err != nil {
		if err == delta.ErrNotProducer {
			n.logger.Debug("Not a producer, skipping construction")
			return
		}
		n.logger.WithError(err).Error("Building candidate")
		return
	}

	atomic.AddUint64(&n.counters.candidatesBuilt, 1)

	n.voter.Observe(candidate)

	n.publish(gossip.CandidateKind, previousHash, candidate.ToBroadcast())
}

// campaign votes for the favourite candidate of the round.
func (n *Node) campaign(previousHash []byte) {
	if !n.isProducer(n.id) {
		return
	}

	favourite, ok := n.voter.TryGetFavourite(previousHash)
	if !ok {
		n.logger.WithField("previous", common.EncodeToString(previousHash)).Debug("No favourite candidate")
		return
	}

	vote := &delta.FavouriteVote{
		Candidate: favourite,
		VoterID:   n.id,
	}

	if n.elector.Observe(vote) {
		atomic.AddUint64(&n.counters.votesCast, 1)
	}

	n.publish(gossip.FavouriteKind, previousHash, vote.ToBroadcast())
}

// elect commits the winner of the round if this node built it.
func (n *Node) elect(previousHash []byte) {
	winner, ok := n.elector.GetWinner(previousHash)
	if !ok {
		atomic.AddUint64(&n.counters.roundsWithoutWinner, 1)
		n.logger.WithField("previous", common.EncodeToString(previousHash)).Info("No winner")
		return
	}

	body, ok := n.builder.Body(winner)
	if !ok {
		n.logger.WithField("winner", common.EncodeToString(winner)).Debug("Winner built by another producer")
		return
	}

	if !n.goFunc(func() { n.commit(previousHash, body) }) {
		n.logger.Warn("Too many background routines, dropping commit")
	}
}

// commit stores a winning body, advances the chain, and gossips the new tip.
func (n *Node) commit(previousHash []byte, body *delta.Delta) {
	hash, err := n.store.Put(body)
	if err != nil {
		n.logger.WithError(err).Error("Storing delta")
		return
	}

	advanced, err := n.chain.Advance(previousHash, hash, n.store.SetTip)
	if !advanced {
		atomic.AddUint64(&n.counters.advancesRejected, 1)
		n.logger.WithField("hash", common.EncodeToString(hash)).Debug("Stale commit")
		return
	}
	if err != nil {
		n.logger.WithError(err).Error("Persisting tip")
	}

	removed := n.mempool.Remove(body.Transactions)

	atomic.AddUint64(&n.counters.roundsCommitted, 1)

	n.logger.WithFields(logrus.Fields{
		"hash":         common.EncodeToString(hash),
		"previous":     common.EncodeToString(previousHash),
		"transactions": len(body.Transactions),
		"pruned":       removed,
	}).Info("Committed delta")

	msg, err := n.newMessage(gossip.ChainAdvanceKind, previousHash, delta.ChainAdvanceBroadcast{
		NewHash:      hash,
		PreviousHash: previousHash,
	})
	if err != nil {
		n.logger.WithError(err).Error("Encoding chain advance")
		return
	}
	n.send(msg)
}

// conclude evicts a round from every cache.
func (n *Node) conclude(previousHash []byte) {
	n.builder.EvictRound(previousHash)
	n.voter.EvictRound(previousHash)
	n.elector.EvictRound(previousHash)

	key := common.EncodeToString(previousHash)

	n.roundsLock.Lock()
	ids, _ := n.rounds.Get(key)
	n.rounds.Remove(key)
	n.roundsLock.Unlock()

	for _, id := range ids {
		n.broadcaster.ForgetMessage(id)
	}

	n.logger.WithFields(logrus.Fields{
		"previous": key,
		"messages": len(ids),
	}).Debug("Round concluded")
}

/*******************************************************************************
Gossip
*******************************************************************************/

// newMessage encodes a payload and ties its correlation id to a round.
func (n *Node) newMessage(kind gossip.Kind, previousHash []byte, payload interface{}) (*gossip.Message, error) {
	bs, err := delta.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	msg := gossip.NewMessage(kind, bs)
	n.trackRound(previousHash, msg.CorrelationID)
	return msg, nil
}

// publish gossips a message in the background.
func (n *Node) publish(kind gossip.Kind, previousHash []byte, payload interface{}) {
	msg, err := n.newMessage(kind, previousHash, payload)
	if err != nil {
		n.logger.WithError(err).WithField("kind", kind.String()).Error("Encoding message")
		return
	}

	if !n.goFunc(func() { n.send(msg) }) {
		n.logger.WithField("kind", kind.String()).Warn("Too many background routines, dropping broadcast")
	}
}

// send runs one broadcast round for msg. It blocks on the network.
func (n *Node) send(msg *gossip.Message) {
	count, err := n.broadcaster.Broadcast(msg)
	if err != nil {
		n.logger.WithError(err).WithField("kind", msg.Kind.String()).Error("Broadcasting")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"kind":           msg.Kind.String(),
		"correlation_id": msg.CorrelationID,
		"peers":          count,
	}).Debug("Broadcast")
}

// relay forwards a received envelope without re-signing it.
func (n *Node) relay(sm *gossip.SignedMessage) {
	count, err := n.broadcaster.Relay(sm)
	if err != nil {
		n.logger.WithError(err).WithField("kind", sm.Message.Kind.String()).Error("Relaying")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"kind":           sm.Message.Kind.String(),
		"correlation_id": sm.Message.CorrelationID,
		"originator":     sm.Originator,
		"peers":          count,
	}).Debug("Relay")
}

func (n *Node) trackRound(previousHash []byte, correlationID string) {
	key := common.EncodeToString(previousHash)

	n.roundsLock.Lock()
	defer n.roundsLock.Unlock()

	ids, _ := n.rounds.Get(key)
	n.rounds.Add(key, append(ids, correlationID))
}

/*******************************************************************************
Helpers
*******************************************************************************/

func (n *Node) setAnchor(previousHash []byte) {
	n.anchorLock.Lock()
	defer n.anchorLock.Unlock()
	n.anchor = previousHash
}

func (n *Node) getAnchor() []byte {
	n.anchorLock.Lock()
	defer n.anchorLock.Unlock()
	return n.anchor
}

func (n *Node) isProducer(id string) bool {
	for _, p := range n.peers.CurrentAuthorizedProducers() {
		if p == id {
			return true
		}
	}
	return false
}
