package peers

import (
	"strings"
)

//PeerSet is an immutable set of Peers. Modifications return a new PeerSet.
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	ByPubKey map[string]*Peer `json:"-"`
}

//NewPeerSet creates a new PeerSet from a list of Peers. Public keys are
//normalised to the 0X-prefixed upper case form derived from private keys.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByPubKey: make(map[string]*Peer),
	}

	for _, peer := range peers {
		peer.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(peer.PubKeyHex), "0X")
		peerSet.ByPubKey[peer.ID()] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

//WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := append([]*Peer{}, peerSet.Peers...)

	//don't add it if it already exists
	if _, ok := peerSet.ByPubKey[peer.ID()]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

//WithRemovedPeer returns a new PeerSet with a list of peers excluding the
//provided one
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	_, peers := ExcludePeer(peerSet.Peers, peer.ID())
	return NewPeerSet(peers)
}

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

//IDs returns the PeerSet's slice of IDs
func (peerSet *PeerSet) IDs() []string {
	res := make([]string, 0, len(peerSet.Peers))
	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID())
	}
	return res
}

//Producers returns the peers flagged as authorized producers, in the order of
//the PeerSet. Duplicated entries are kept.
func (peerSet *PeerSet) Producers() []*Peer {
	res := []*Peer{}
	for _, peer := range peerSet.Peers {
		if peer.Producer {
			res = append(res, peer)
		}
	}
	return res
}
