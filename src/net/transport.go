package net

import (
	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
)

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Gossip delivers an envelope to the target node. It implements
	// gossip.Sender.
	Gossip(target string, msg *gossip.SignedMessage) error

	// FetchDelta requests a committed delta from the target node.
	FetchDelta(target string, args *FetchDeltaRequest, resp *FetchDeltaResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
