// Package peers defines the peers of a delta network and the provider through
// which the consensus core reads them.
//
// A peer is an entity operating a node. Every peer relays gossip; a peer
// flagged as a producer additionally belongs to the authorized producer set of
// the Proof-of-Authority network: it builds candidate deltas and votes for its
// favourite candidate in each round.
//
// Peers are identified by their public keys, and optionaly a moniker which is
// a non-unique user-friendly name. Upon starting up, a node expects to find a
// peers.json file in its data directory listing every peer of the network,
// including itself.
//
// The consensus core never assumes that the peer or producer sets are static.
// It reads a snapshot from a Provider for every operation, and membership is
// maintained by whoever owns the Provider.
package peers
