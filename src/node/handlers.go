package node

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
	"github.com/catalyst-network/Catalyst-sub014/src/net"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBadSignature is returned for envelopes that fail verification.
	ErrBadSignature = fmt.Errorf("invalid envelope signature")
	// ErrUnknownOriginator is returned for envelopes signed by a node outside
	// the peer set.
	ErrUnknownOriginator = fmt.Errorf("unknown originator")
	// ErrForeignOriginator is returned when the originator of an envelope is
	// not the author of its payload.
	ErrForeignOriginator = fmt.Errorf("originator is not the author of the payload")
	// ErrUnknownKind is returned for envelopes of an unsupported kind.
	ErrUnknownKind = fmt.Errorf("unknown message kind")
)

// handler processes the payload of an envelope received for the first time.
type handler func(sm *gossip.SignedMessage) error

func (n *Node) makeHandlers() map[gossip.Kind]handler {
	return map[gossip.Kind]handler{
		gossip.CandidateKind:    n.handleCandidate,
		gossip.FavouriteKind:    n.handleFavourite,
		gossip.ChainAdvanceKind: n.handleChainAdvance,
	}
}

// receive verifies an inbound envelope, records it, and dispatches it to the
// handler of its kind if it is seen for the first time. It returns true on
// first receipt of a valid envelope.
func (n *Node) receive(sm *gossip.SignedMessage) (bool, error) {
	if !sm.Verify() {
		atomic.AddUint64(&n.counters.messagesDropped, 1)
		return false, ErrBadSignature
	}

	if sm.Originator != n.id {
		if _, ok := n.peers.ByID(sm.Originator); !ok {
			atomic.AddUint64(&n.counters.messagesDropped, 1)
			return false, ErrUnknownOriginator
		}
	}

	h, ok := n.handlers[sm.Message.Kind]
	if !ok {
		atomic.AddUint64(&n.counters.messagesDropped, 1)
		return false, ErrUnknownKind
	}

	if !n.broadcaster.Receive(sm) {
		return false, nil
	}

	if err := h(sm); err != nil {
		// Without a record, copies of a rejected message are rejected again
		// instead of being relayed.
		n.broadcaster.ForgetMessage(sm.Message.CorrelationID)
		atomic.AddUint64(&n.counters.messagesDropped, 1)
		return false, err
	}

	return true, nil
}

func (n *Node) handleCandidate(sm *gossip.SignedMessage) error {
	var cb delta.CandidateBroadcast
	if err := delta.UnmarshalPayload(sm.Message.Payload, &cb); err != nil {
		return err
	}

	if cb.ProducerID != sm.Originator {
		return ErrForeignOriginator
	}

	n.trackRound(cb.PreviousHash, sm.Message.CorrelationID)

	n.voter.Observe(cb.ToCandidate())

	return nil
}

func (n *Node) handleFavourite(sm *gossip.SignedMessage) error {
	var fb delta.FavouriteBroadcast
	if err := delta.UnmarshalPayload(sm.Message.Payload, &fb); err != nil {
		return err
	}

	if fb.VoterID != sm.Originator {
		return ErrForeignOriginator
	}

	n.trackRound(fb.Candidate.PreviousHash, sm.Message.CorrelationID)

	n.elector.Observe(fb.ToVote())

	return nil
}

// handleChainAdvance follows a tip committed by another producer, then
// retrieves the committed body in the background to prune the mempool.
func (n *Node) handleChainAdvance(sm *gossip.SignedMessage) error {
	var ca delta.ChainAdvanceBroadcast
	if err := delta.UnmarshalPayload(sm.Message.Payload, &ca); err != nil {
		return err
	}

	if len(ca.NewHash) != n.alg.Size() || len(ca.PreviousHash) != n.alg.Size() {
		return delta.ErrMalformedHash
	}

	if !n.isProducer(sm.Originator) {
		return delta.ErrNotProducer
	}

	n.trackRound(ca.PreviousHash, sm.Message.CorrelationID)

	logger := n.logger.WithFields(logrus.Fields{
		"hash":       common.EncodeToString(ca.NewHash),
		"previous":   common.EncodeToString(ca.PreviousHash),
		"originator": sm.Originator,
	})

	advanced, err := n.chain.Advance(ca.PreviousHash, ca.NewHash, n.store.SetTip)
	if !advanced {
		atomic.AddUint64(&n.counters.advancesRejected, 1)
		logger.Debug("Stale chain advance")
		return nil
	}

	atomic.AddUint64(&n.counters.advancesAccepted, 1)
	logger.Info("Chain advanced")

	if err != nil {
		logger.WithError(err).Error("Persisting tip")
	}

	if !n.goFunc(func() { n.syncDelta(sm.Originator, ca.NewHash) }) {
		logger.Warn("Too many background routines, skipping delta sync")
	}

	return nil
}

// syncDelta makes sure a committed body is in the local store, fetching it
// from its producer if needed, and prunes its transactions from the mempool.
func (n *Node) syncDelta(producer string, hash []byte) {
	logger := n.logger.WithField("hash", common.EncodeToString(hash))

	body, err := n.store.Get(hash)
	if err != nil {
		if !common.IsStore(err, common.KeyNotFound) {
			logger.WithError(err).Error("Reading delta")
			return
		}

		body, err = n.fetchDelta(producer, hash)
		if err != nil {
			logger.WithError(err).Warn("Fetching delta")
			return
		}

		stored, err := n.store.Put(body)
		if err != nil {
			logger.WithError(err).Error("Storing delta")
			return
		}
		if !bytes.Equal(stored, hash) {
			logger.WithField("stored", common.EncodeToString(stored)).Warn("Delta stored under a different hash")
		}
	}

	removed := n.mempool.Remove(body.Transactions)

	logger.WithField("pruned", removed).Debug("Delta synced")
}

func (n *Node) fetchDelta(producer string, hash []byte) (*delta.Delta, error) {
	peer, ok := n.peers.ByID(producer)
	if !ok {
		return nil, ErrUnknownOriginator
	}

	var resp net.FetchDeltaResponse
	if err := n.trans.FetchDelta(peer.NetAddr, &net.FetchDeltaRequest{Hash: hash}, &resp); err != nil {
		return nil, err
	}

	if !resp.Found {
		return nil, common.NewStoreErr("Delta", common.KeyNotFound, common.EncodeToString(hash))
	}

	if !bytes.Equal(n.alg.Sum(resp.Body), hash) {
		return nil, fmt.Errorf("fetched delta does not match %s", common.EncodeToString(hash))
	}

	body := new(delta.Delta)
	if err := body.Unmarshal(resp.Body); err != nil {
		return nil, err
	}

	return body, nil
}
