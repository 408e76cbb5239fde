package peers

import (
	"github.com/catalyst-network/Catalyst-sub014/src/common"
)

// Peer is a member of the network.
type Peer struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string
	Producer  bool
}

// NewPeer creates a relaying peer. Use NewProducer for members of the
// authorized producer set.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}
}

// NewProducer creates a peer that belongs to the authorized producer set.
func NewProducer(pubKeyHex, netAddr, moniker string) *Peer {
	peer := NewPeer(pubKeyHex, netAddr, moniker)
	peer.Producer = true
	return peer
}

// ID returns the identifier of the peer, which is its public key in hex form.
func (p *Peer) ID() string {
	return p.PubKeyHex
}

// PubKeyBytes decodes the public key
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(p.PubKeyHex)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, id string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID() != id {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
