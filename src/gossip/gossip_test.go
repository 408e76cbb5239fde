package gossip

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPeers []*peers.Peer

func (s staticPeers) CurrentPeers() []*peers.Peer {
	return s
}

func makePeers(n int) staticPeers {
	res := staticPeers{}
	for i := 0; i < n; i++ {
		res = append(res, peers.NewPeer(fmt.Sprintf("0X%04d", i), fmt.Sprintf("addr%d", i), ""))
	}
	return res
}

type recordingSender struct {
	sync.Mutex
	targets []string
	fail    map[string]bool
}

func (s *recordingSender) Gossip(target string, msg *SignedMessage) error {
	s.Lock()
	defer s.Unlock()
	s.targets = append(s.targets, target)
	if s.fail[target] {
		return errors.Errorf("%s unreachable", target)
	}
	return nil
}

func newSigner(t *testing.T) keys.Signer {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	return keys.NewECDSASigner(key)
}

func newBroadcaster(t *testing.T, n int) (*Broadcaster, *recordingSender) {
	sender := &recordingSender{}
	b := NewBroadcaster(DefaultConfig(),
		newSigner(t),
		makePeers(n),
		sender,
		common.NewTestEntry(t, logrus.DebugLevel))
	return b, sender
}

func remoteEnvelope(t *testing.T) *SignedMessage {
	sm, err := Sign(NewMessage(CandidateKind, []byte("payload")), newSigner(t))
	require.NoError(t, err)
	return sm
}

func TestRemainingRounds(t *testing.T) {
	conf := DefaultConfig()

	cases := []struct {
		size, count, expected int
	}{
		{100, 0, 3},  // ln(33.3) = 3.5
		{100, 3, 3},  // spread is still 1
		{100, 6, 1},  // 3.5 / 2
		{100, 12, 0}, // 3.5 / 4
		{2, 0, 1},    // small networks count as MinNetworkSize
		{10, 0, 1},
		{1000, 0, 5}, // ln(333.3) = 5.8
	}

	for _, c := range cases {
		r := &Record{NetworkSizeAtCreation: c.size, BroadcastCount: c.count}
		assert.Equal(t, c.expected, r.RemainingRounds(conf), "size %d count %d", c.size, c.count)
	}
}

func TestRelayBroadcast(t *testing.T) {
	b, sender := newBroadcaster(t, 100)
	sm := remoteEnvelope(t)

	require.True(t, b.Receive(sm))

	n, err := b.Broadcast(&sm.Message)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	record, ok := b.GetRecord(sm.Message.CorrelationID)
	require.True(t, ok)
	assert.Equal(t, 3, record.BroadcastCount)
	assert.Equal(t, 1, record.ReceivedCount)
	assert.False(t, record.Owner())

	// exhausted: further broadcasts are no-ops
	n, err = b.Broadcast(&sm.Message)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	record, _ = b.GetRecord(sm.Message.CorrelationID)
	assert.Equal(t, 3, record.BroadcastCount)
	assert.Len(t, sender.targets, 3)
	assert.Equal(t, uint64(1), b.Stats().Suppressed)
}

func TestOwnerBroadcast(t *testing.T) {
	b, sender := newBroadcaster(t, 100)
	msg := NewMessage(FavouriteKind, []byte("vote"))

	n, err := b.Broadcast(msg)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	record, ok := b.GetRecord(msg.CorrelationID)
	require.True(t, ok)
	assert.Equal(t, 10, record.BroadcastCount)
	assert.Equal(t, 100, record.NetworkSizeAtCreation)
	assert.True(t, record.Owner())

	// targets are distinct
	seen := map[string]bool{}
	for _, target := range sender.targets {
		assert.False(t, seen[target])
		seen[target] = true
	}
	assert.Len(t, seen, 10)
	assert.Equal(t, uint64(10), b.Stats().Sent)
}

func TestFanoutCappedByAvailablePeers(t *testing.T) {
	b, sender := newBroadcaster(t, 2)
	sm := remoteEnvelope(t)
	b.Receive(sm)

	n, err := b.Broadcast(&sm.Message)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	record, _ := b.GetRecord(sm.Message.CorrelationID)
	assert.Equal(t, 2, record.BroadcastCount)
	assert.ElementsMatch(t, []string{"addr0", "addr1"}, sender.targets)
}

func TestNoPeers(t *testing.T) {
	b, sender := newBroadcaster(t, 0)

	n, err := b.Broadcast(NewMessage(CandidateKind, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sender.targets)
}

func TestBroadcastTerminates(t *testing.T) {
	for _, size := range []int{1, 5, 50, 500} {
		b, _ := newBroadcaster(t, size)
		sm := remoteEnvelope(t)
		b.Receive(sm)

		for i := 0; i < 100; i++ {
			before, _ := b.GetRecord(sm.Message.CorrelationID)
			n, err := b.Broadcast(&sm.Message)
			require.NoError(t, err)

			after, _ := b.GetRecord(sm.Message.CorrelationID)
			assert.GreaterOrEqual(t, after.BroadcastCount, before.BroadcastCount)
			assert.LessOrEqual(t, n, size)
			assert.LessOrEqual(t, n, before.Fanout(b.conf))

			if before.Exhausted(b.conf) {
				assert.Equal(t, 0, n)
				assert.Equal(t, before.BroadcastCount, after.BroadcastCount)
			}
		}

		final, _ := b.GetRecord(sm.Message.CorrelationID)
		assert.True(t, final.Exhausted(b.conf), "size %d", size)
	}
}

func TestReceiveKeepsOriginalEnvelope(t *testing.T) {
	b, _ := newBroadcaster(t, 5)
	sender := &recordingEnvelopes{}
	b.sender = sender

	sm := remoteEnvelope(t)
	assert.True(t, b.Receive(sm))
	assert.False(t, b.Receive(sm))

	_, err := b.Broadcast(&sm.Message)
	require.NoError(t, err)

	require.NotEmpty(t, sender.envelopes)
	for _, e := range sender.envelopes {
		assert.Equal(t, sm.Originator, e.Originator)
		assert.Equal(t, sm.Signature, e.Signature)
		assert.True(t, e.Verify())
	}

	record, _ := b.GetRecord(sm.Message.CorrelationID)
	assert.Equal(t, 2, record.ReceivedCount)
}

type recordingEnvelopes struct {
	sync.Mutex
	envelopes []*SignedMessage
}

func (s *recordingEnvelopes) Gossip(target string, msg *SignedMessage) error {
	s.Lock()
	defer s.Unlock()
	s.envelopes = append(s.envelopes, msg)
	return nil
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	b, sender := newBroadcaster(t, 3)
	sender.fail = map[string]bool{"addr0": true, "addr1": true, "addr2": true}

	n, err := b.Broadcast(NewMessage(CandidateKind, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(3), b.Stats().Failed)
}

func TestForgetMessage(t *testing.T) {
	b, _ := newBroadcaster(t, 5)
	sm := remoteEnvelope(t)
	b.Receive(sm)
	require.Equal(t, 1, b.Len())

	b.ForgetMessage(sm.Message.CorrelationID)
	_, ok := b.GetRecord(sm.Message.CorrelationID)
	assert.False(t, ok)

	// seen again as a new message
	assert.True(t, b.Receive(sm))
}

func TestRelayForwardsOriginalEnvelope(t *testing.T) {
	b, _ := newBroadcaster(t, 100)
	sender := &recordingEnvelopes{}
	b.sender = sender

	sm := remoteEnvelope(t)
	require.True(t, b.Receive(sm))

	// the record may be dropped between receiving and relaying
	b.ForgetMessage(sm.Message.CorrelationID)

	n, err := b.Relay(sm)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, sender.envelopes, 3)
	for _, e := range sender.envelopes {
		assert.Equal(t, sm.Originator, e.Originator)
		assert.Equal(t, sm.Signature, e.Signature)
		assert.True(t, e.Verify())
	}

	record, ok := b.GetRecord(sm.Message.CorrelationID)
	require.True(t, ok)
	assert.False(t, record.Owner())
	assert.Equal(t, 3, record.BroadcastCount)

	// exhausted
	n, err = b.Relay(sm)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, sender.envelopes, 3)
}

func TestRelayNil(t *testing.T) {
	b, _ := newBroadcaster(t, 5)
	_, err := b.Relay(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{}.Validate())

	mutations := []func(*Config){
		func(c *Config) { c.OwnerFanout = 0 },
		func(c *Config) { c.RelayFanout = 0 },
		func(c *Config) { c.RelayFanout = -3 },
		func(c *Config) { c.MinNetworkSize = 0 },
		func(c *Config) { c.RecordTTL = 0 },
		func(c *Config) { c.MaxRecords = 0 },
	}
	for i, mutate := range mutations {
		conf := DefaultConfig()
		mutate(&conf)
		assert.Error(t, conf.Validate(), "mutation %d", i)
	}
}

func TestNegativeFanoutSendsNothing(t *testing.T) {
	conf := DefaultConfig()
	conf.OwnerFanout = -1
	sender := &recordingSender{}
	b := NewBroadcaster(conf, newSigner(t), makePeers(5), sender, common.NewTestEntry(t, logrus.DebugLevel))

	var n int
	var err error
	assert.NotPanics(t, func() {
		n, err = b.Broadcast(NewMessage(CandidateKind, nil))
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sender.targets)
}

func TestRecordsExpire(t *testing.T) {
	conf := DefaultConfig()
	conf.RecordTTL = 20 * time.Millisecond

	b := NewBroadcaster(conf, newSigner(t), makePeers(5), &recordingSender{}, common.NewTestEntry(t, logrus.DebugLevel))
	sm := remoteEnvelope(t)
	b.Receive(sm)

	assert.Eventually(t, func() bool {
		_, ok := b.GetRecord(sm.Message.CorrelationID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestSignedMessageVerify(t *testing.T) {
	sm := remoteEnvelope(t)
	assert.True(t, sm.Verify())

	bs, err := sm.Marshal()
	require.NoError(t, err)
	var decoded SignedMessage
	require.NoError(t, decoded.Unmarshal(bs))
	assert.True(t, decoded.Verify())

	tampered := *sm
	tampered.Message.Payload = []byte("other")
	assert.False(t, tampered.Verify())

	impostor := *sm
	impostor.Originator = newSigner(t).PublicKeyHex()
	assert.False(t, impostor.Verify())
}
