package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavouriteBroadcastPayload(t *testing.T) {
	alg := testAlg(t)
	producers := testProducers(1)
	c := testCandidate(alg, alg.Sum([]byte("tip")), producers[0], "x")

	vote := &FavouriteVote{Candidate: c, VoterID: "0XVOTER"}
	bs, err := MarshalPayload(vote.ToBroadcast())
	require.NoError(t, err)

	var fb FavouriteBroadcast
	require.NoError(t, UnmarshalPayload(bs, &fb))

	decoded := fb.ToVote()
	assert.Equal(t, "0XVOTER", decoded.VoterID)
	assert.Equal(t, c.Hash, decoded.Candidate.Hash)
	assert.Equal(t, c.PreviousHash, decoded.Candidate.PreviousHash)
	assert.Equal(t, c.ProducerID, decoded.Candidate.ProducerID)
	assert.Nil(t, decoded.Candidate.TransactionSetRoot)
	assert.NoError(t, decoded.Candidate.Validate(alg))
}
