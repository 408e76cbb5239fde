package node

import (
	"fmt"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/net"
	"github.com/sirupsen/logrus"
)

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.GossipRequest:
		n.processGossipRequest(rpc, cmd)
	case *net.FetchDeltaRequest:
		n.processFetchDeltaRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// processGossipRequest answers the sender before relaying, so that the sender
// is not held by the relay's own sends. Rejected envelopes are not relayed.
func (n *Node) processGossipRequest(rpc net.RPC, cmd *net.GossipRequest) {
	envelope := cmd.Envelope

	first, err := n.receive(&envelope)
	if err != nil {
		n.logger.WithError(err).WithField("originator", envelope.Originator).Debug("Dropping gossip")
		rpc.Respond(&net.GossipResponse{Accepted: false}, nil)
		return
	}

	rpc.Respond(&net.GossipResponse{Accepted: first}, nil)

	n.relay(&envelope)
}

func (n *Node) processFetchDeltaRequest(rpc net.RPC, cmd *net.FetchDeltaRequest) {
	resp := &net.FetchDeltaResponse{}

	body, err := n.store.Get(cmd.Hash)
	switch {
	case err == nil:
		resp.Body, err = body.Marshal()
		resp.Found = err == nil
	case common.IsStore(err, common.KeyNotFound):
		err = nil
	default:
		n.logger.WithError(err).Error("Reading delta")
	}

	n.logger.WithFields(logrus.Fields{
		"hash":  common.EncodeToString(cmd.Hash),
		"found": resp.Found,
	}).Debug("FetchDelta")

	rpc.Respond(resp, err)
}
