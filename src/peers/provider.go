package peers

import (
	"sync"
)

// Provider gives the consensus core read-only snapshots of the peer set and of
// the authorized producer set. Implementations are owned by the membership
// layer and may change between calls.
type Provider interface {
	// CurrentPeers returns the peers this node can gossip with. It never
	// contains the local node.
	CurrentPeers() []*Peer

	// CurrentAuthorizedProducers returns the IDs of the authorized producers,
	// possibly including the local node.
	CurrentAuthorizedProducers() []string
}

// SetProvider implements Provider on top of a PeerSet that can be swapped
// atomically by the membership layer.
type SetProvider struct {
	sync.RWMutex
	selfID  string
	peerSet *PeerSet
}

// NewSetProvider creates a Provider for the node identified by selfID.
func NewSetProvider(peerSet *PeerSet, selfID string) *SetProvider {
	return &SetProvider{
		selfID:  selfID,
		peerSet: peerSet,
	}
}

// SetPeerSet replaces the underlying PeerSet.
func (p *SetProvider) SetPeerSet(peerSet *PeerSet) {
	p.Lock()
	defer p.Unlock()
	p.peerSet = peerSet
}

// PeerSet returns the underlying PeerSet.
func (p *SetProvider) PeerSet() *PeerSet {
	p.RLock()
	defer p.RUnlock()
	return p.peerSet
}

// CurrentPeers implements Provider.
func (p *SetProvider) CurrentPeers() []*Peer {
	_, others := ExcludePeer(p.PeerSet().Peers, p.selfID)
	return others
}

// CurrentAuthorizedProducers implements Provider.
func (p *SetProvider) CurrentAuthorizedProducers() []string {
	producers := p.PeerSet().Producers()
	res := make([]string, 0, len(producers))
	for _, peer := range producers {
		res = append(res, peer.ID())
	}
	return res
}

// ByID looks up a peer of the current set.
func (p *SetProvider) ByID(id string) (*Peer, bool) {
	peer, ok := p.PeerSet().ByPubKey[id]
	return peer, ok
}
