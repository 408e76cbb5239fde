package net

import (
	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
)

// GossipRequest carries a signed gossip envelope to a peer.
type GossipRequest struct {
	Envelope gossip.SignedMessage
}

// GossipResponse acknowledges a GossipRequest.
type GossipResponse struct {
	Accepted bool
}

// FetchDeltaRequest asks a peer for the body of a committed delta.
type FetchDeltaRequest struct {
	Hash []byte
}

// FetchDeltaResponse returns the encoded body of the requested delta, if the
// peer has it. The receiver checks the bytes against the requested hash.
type FetchDeltaResponse struct {
	Found bool
	Body  []byte
}
