package delta

// CandidateBroadcast is the gossip payload announcing a candidate.
type CandidateBroadcast struct {
	Hash         []byte
	PreviousHash []byte
	ProducerID   string
}

// FavouriteBroadcast is the gossip payload carrying a vote.
type FavouriteBroadcast struct {
	Candidate CandidateBroadcast
	VoterID   string
}

// ChainAdvanceBroadcast announces that the delta with hash NewHash was
// committed on top of PreviousHash.
type ChainAdvanceBroadcast struct {
	NewHash      []byte
	PreviousHash []byte
}

// ToBroadcast returns the gossip payload of a candidate.
func (c *CandidateDelta) ToBroadcast() CandidateBroadcast {
	return CandidateBroadcast{
		Hash:         c.Hash,
		PreviousHash: c.PreviousHash,
		ProducerID:   c.ProducerID,
	}
}

// ToCandidate converts the payload back into a CandidateDelta. The
// transaction set root is not gossiped.
func (cb CandidateBroadcast) ToCandidate() *CandidateDelta {
	return &CandidateDelta{
		Hash:         cb.Hash,
		PreviousHash: cb.PreviousHash,
		ProducerID:   cb.ProducerID,
	}
}

// ToBroadcast returns the gossip payload of a vote.
func (v *FavouriteVote) ToBroadcast() FavouriteBroadcast {
	return FavouriteBroadcast{
		Candidate: v.Candidate.ToBroadcast(),
		VoterID:   v.VoterID,
	}
}

// ToVote ...
func (fb FavouriteBroadcast) ToVote() *FavouriteVote {
	return &FavouriteVote{
		Candidate: fb.Candidate.ToCandidate(),
		VoterID:   fb.VoterID,
	}
}

// MarshalPayload encodes any of the broadcast shapes.
func MarshalPayload(v interface{}) ([]byte, error) {
	return marshal(v)
}

// UnmarshalPayload decodes any of the broadcast shapes.
func UnmarshalPayload(data []byte, v interface{}) error {
	return unmarshal(data, v)
}
