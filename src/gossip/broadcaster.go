package gossip

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Peers is the read side of the peer set. It never contains the local node.
type Peers interface {
	CurrentPeers() []*peers.Peer
}

// Sender delivers an envelope to a single peer.
type Sender interface {
	Gossip(target string, msg *SignedMessage) error
}

// Stats are cumulative counters of a Broadcaster.
type Stats struct {
	Sent       uint64
	Failed     uint64
	Received   uint64
	Suppressed uint64
}

// Broadcaster disseminates messages with the bounded epidemic protocol
// described in the package documentation.
type Broadcaster struct {
	conf   Config
	signer keys.Signer
	peers  Peers
	sender Sender

	// mu serializes the updates of records. Sends happen outside of it.
	mu      sync.Mutex
	records *expirable.LRU[string, *Record]
	rand    *rand.Rand

	sent       uint64
	failed     uint64
	received   uint64
	suppressed uint64

	logger *logrus.Entry
}

// NewBroadcaster ...
func NewBroadcaster(conf Config,
	signer keys.Signer,
	peers Peers,
	sender Sender,
	logger *logrus.Entry) *Broadcaster {

	return &Broadcaster{
		conf:    conf,
		signer:  signer,
		peers:   peers,
		sender:  sender,
		records: expirable.NewLRU[string, *Record](conf.MaxRecords, nil, conf.RecordTTL),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger.WithField("component", "gossip"),
	}
}

// Broadcast sends a message to a random subset of peers. If the local node
// already holds a record for the message it relays the retained envelope,
// otherwise it becomes the originator and signs the message. Broadcast is a
// no-op once the record is exhausted. It blocks until every send has returned
// and reports the number of peers targeted. Send failures are logged and
// swallowed.
func (b *Broadcaster) Broadcast(msg *Message) (int, error) {
	currentPeers := b.peers.CurrentPeers()

	b.mu.Lock()

	record, ok := b.records.Get(msg.CorrelationID)
	if !ok || record.message == nil {
		signed, err := Sign(msg, b.signer)
		if err != nil {
			b.mu.Unlock()
			return 0, err
		}
		record = &Record{
			NetworkSizeAtCreation: len(currentPeers),
			owner:                 true,
			message:               signed,
		}
		b.records.Add(msg.CorrelationID, record)
	}

	return b.spread(record, currentPeers), nil
}

// Relay forwards an envelope received from another node. The envelope is sent
// as is, with the originator's signature. If the record of the message was
// dropped in the meantime it is recreated as a relay record from sm. Relay
// follows the admission and fan-out rules of Broadcast.
func (b *Broadcaster) Relay(sm *SignedMessage) (int, error) {
	if sm == nil {
		return 0, fmt.Errorf("nil envelope")
	}

	currentPeers := b.peers.CurrentPeers()

	b.mu.Lock()

	record, ok := b.records.Get(sm.Message.CorrelationID)
	if !ok || record.message == nil {
		record = &Record{
			NetworkSizeAtCreation: len(currentPeers),
			message:               sm,
		}
		b.records.Add(sm.Message.CorrelationID, record)
	}

	return b.spread(record, currentPeers), nil
}

// spread sends the envelope of record to its next batch of peers. It must be
// called with mu held and releases it before sending.
func (b *Broadcaster) spread(record *Record, currentPeers []*peers.Peer) int {
	if record.Exhausted(b.conf) {
		b.mu.Unlock()
		atomic.AddUint64(&b.suppressed, 1)
		return 0
	}

	targets := b.selectPeers(currentPeers, record.Fanout(b.conf))
	record.BroadcastCount += len(targets)
	envelope := record.message

	b.mu.Unlock()

	b.send(envelope, targets)

	return len(targets)
}

// selectPeers picks n peers uniformly at random without replacement. Must be
// called with mu held.
func (b *Broadcaster) selectPeers(candidates []*peers.Peer, n int) []*peers.Peer {
	if n > len(candidates) {
		n = len(candidates)
	}
	if n < 0 {
		n = 0
	}
	res := make([]*peers.Peer, n)
	for i, j := range b.rand.Perm(len(candidates))[:n] {
		res[i] = candidates[j]
	}
	return res
}

func (b *Broadcaster) send(envelope *SignedMessage, targets []*peers.Peer) {
	var g errgroup.Group
	if b.conf.SendConcurrency > 0 {
		g.SetLimit(b.conf.SendConcurrency)
	}

	for _, p := range targets {
		peer := p
		g.Go(func() error {
			if err := b.sender.Gossip(peer.NetAddr, envelope); err != nil {
				atomic.AddUint64(&b.failed, 1)
				b.logger.WithError(err).WithFields(logrus.Fields{
					"peer":           peer.NetAddr,
					"correlation_id": envelope.Message.CorrelationID,
				}).Warn("Gossip send failed")
				return nil
			}
			atomic.AddUint64(&b.sent, 1)
			return nil
		})
	}

	g.Wait()
}

// Receive records an inbound envelope. It returns true the first time a
// correlation ID is seen. The envelope is retained so that relays forward
// the originator's signature.
func (b *Broadcaster) Receive(sm *SignedMessage) bool {
	atomic.AddUint64(&b.received, 1)

	currentPeers := b.peers.CurrentPeers()

	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.records.Get(sm.Message.CorrelationID)
	if !ok {
		record = &Record{
			NetworkSizeAtCreation: len(currentPeers),
			message:               sm,
		}
		b.records.Add(sm.Message.CorrelationID, record)
	}
	record.ReceivedCount++

	return !ok
}

// ForgetMessage drops the record of a message before its TTL.
func (b *Broadcaster) ForgetMessage(correlationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records.Remove(correlationID)
}

// GetRecord returns a copy of the record of a message.
func (b *Broadcaster) GetRecord(correlationID string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.records.Get(correlationID)
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Len is the number of live records.
func (b *Broadcaster) Len() int {
	return b.records.Len()
}

// Stats ...
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Sent:       atomic.LoadUint64(&b.sent),
		Failed:     atomic.LoadUint64(&b.failed),
		Received:   atomic.LoadUint64(&b.received),
		Suppressed: atomic.LoadUint64(&b.suppressed),
	}
}
