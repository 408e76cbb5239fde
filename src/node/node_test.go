package node

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"testing"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/config"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/dfs"
	"github.com/catalyst-network/Catalyst-sub014/src/mempool"
	"github.com/catalyst-network/Catalyst-sub014/src/net"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlg(t *testing.T) crypto.HashAlgorithm {
	alg, err := crypto.LookupHashAlgorithm(config.DefaultHashAlgorithm)
	require.NoError(t, err)
	return alg
}

type testNode struct {
	*Node
	key   *ecdsa.PrivateKey
	trans *net.InmemTransport
}

// initPeers creates n keys and a peer set where the first producers peers
// are authorized producers. Every peer gets an in-memory transport.
func initPeers(t *testing.T, n int, producers int) ([]*ecdsa.PrivateKey, []*net.InmemTransport, *peers.PeerSet) {
	privKeys := []*ecdsa.PrivateKey{}
	transports := []*net.InmemTransport{}
	pirs := []*peers.Peer{}

	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)

		addr, trans := net.NewInmemTransport("")

		pubHex := keys.PublicKeyHex(&key.PublicKey)
		moniker := fmt.Sprintf("node%d", i)

		var peer *peers.Peer
		if i < producers {
			peer = peers.NewProducer(pubHex, addr, moniker)
		} else {
			peer = peers.NewPeer(pubHex, addr, moniker)
		}

		privKeys = append(privKeys, key)
		transports = append(transports, trans)
		pirs = append(pirs, peer)
	}

	for i, ti := range transports {
		for j, tj := range transports {
			if i != j {
				ti.Connect(pirs[j].NetAddr, tj)
			}
		}
	}

	return privKeys, transports, peers.NewPeerSet(pirs)
}

func newTestNode(t *testing.T,
	key *ecdsa.PrivateKey,
	trans *net.InmemTransport,
	peerSet *peers.PeerSet,
	store dfs.Store) *testNode {

	conf := config.NewTestConfig(t, common.TestLogLevel)

	genesis, err := conf.GenesisHash()
	require.NoError(t, err)

	signer := keys.NewECDSASigner(key)

	node, err := NewNode(conf,
		signer,
		peers.NewSetProvider(peerSet, signer.PublicKeyHex()),
		mempool.NewMempool(conf.MempoolSize),
		store,
		delta.NewChainTracker(genesis),
		trans,
		prometheus.NewRegistry())
	require.NoError(t, err)

	return &testNode{Node: node, key: key, trans: trans}
}

func initNodes(t *testing.T, n int, producers int, store func() dfs.Store) []*testNode {
	privKeys, transports, peerSet := initPeers(t, n, producers)

	nodes := []*testNode{}
	for i := 0; i < n; i++ {
		nodes = append(nodes, newTestNode(t, privKeys[i], transports[i], peerSet, store()))
	}
	return nodes
}

func runNodes(nodes []*testNode) {
	for _, n := range nodes {
		go n.Run(context.Background())
	}
}

func shutdownNodes(nodes []*testNode) {
	for _, n := range nodes {
		n.Shutdown()
	}
}

func testTransactions(n int) []*delta.Transaction {
	res := []*delta.Transaction{}
	for i := 0; i < n; i++ {
		res = append(res, &delta.Transaction{
			Sender:    "alice",
			Payload:   []byte(fmt.Sprintf("payload %d", i)),
			Fee:       uint64(i % 3),
			TimeStamp: int64(1000 + i),
			Signature: delta.TxSignature{
				RawBytes: []byte(fmt.Sprintf("signature %d", i)),
				Context:  []byte("ctx"),
			},
		})
	}
	return res
}

func submitTransactions(t *testing.T, nodes []*testNode, txs []*delta.Transaction) {
	for _, n := range nodes {
		for _, tx := range txs {
			_, err := n.SubmitTransaction(tx)
			require.NoError(t, err)
		}
	}
}

func genesis(t *testing.T, n *testNode) []byte {
	g, err := n.conf.GenesisHash()
	require.NoError(t, err)
	return g
}

// waitAdvance waits until every node has moved past the genesis hash.
func waitAdvance(t *testing.T, nodes []*testNode, timeout time.Duration) {
	require.Eventually(t, func() bool {
		for _, n := range nodes {
			if string(n.Tip()) == string(genesis(t, n)) {
				return false
			}
		}
		return true
	}, timeout, 20*time.Millisecond)
}

// checkChain walks the chain of a node back to genesis and returns the first
// committed delta.
func checkChain(t *testing.T, n *testNode, store dfs.Store) *delta.Delta {
	g := genesis(t, n)

	var first *delta.Delta
	hash := n.Tip()
	for string(hash) != string(g) {
		body, err := store.Get(hash)
		require.NoError(t, err, "delta %s", common.EncodeToString(hash))
		first = body
		hash = body.PreviousHash
	}

	require.NotNil(t, first)
	return first
}

func TestCommitRound(t *testing.T) {
	store := dfs.NewInmemStore(testAlg(t))

	nodes := initNodes(t, 4, 4, func() dfs.Store { return store })
	defer shutdownNodes(nodes)

	txs := testTransactions(10)
	submitTransactions(t, nodes, txs)

	runNodes(nodes)

	waitAdvance(t, nodes, 5*time.Second)

	// Every node prunes the committed transactions, the winner directly and
	// the others once they have synced the committed body.
	require.Eventually(t, func() bool {
		for _, n := range nodes {
			if n.mempool.Len() != 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	stats := nodes[0].GetStats()
	assert.Equal(t, "Running", stats["state"])
	assert.Equal(t, "3", stats["num_peers"])
	assert.Equal(t, "4", stats["num_producers"])
	assert.NotEqual(t, "0", stats["gossip_sent"])

	shutdownNodes(nodes)

	ids := nodes[0].peers.CurrentAuthorizedProducers()
	ranked, err := delta.NewRanker(testAlg(t)).Rank(genesis(t, nodes[0]), ids)
	require.NoError(t, err)

	for _, n := range nodes {
		first := checkChain(t, n, store)
		assert.Equal(t, ranked[0], first.ProducerID, "the best ranked producer wins the first round")
		assert.Len(t, first.Transactions, len(txs))
		assert.Equal(t, delta.SortTransactions(txs)[0].Key(), first.Transactions[0].Key())
	}
}

func TestFollowerFetchesDeltas(t *testing.T) {
	nodes := initNodes(t, 3, 2, func() dfs.Store { return dfs.NewInmemStore(testAlg(t)) })
	defer shutdownNodes(nodes)

	txs := testTransactions(5)
	submitTransactions(t, nodes, txs)

	runNodes(nodes)

	waitAdvance(t, nodes, 5*time.Second)

	follower := nodes[2]

	// The follower never builds nor votes, but it fetches every committed
	// body from its producer.
	require.Eventually(t, func() bool {
		return follower.mempool.Len() == 0
	}, 5*time.Second, 20*time.Millisecond)

	// Stop the follower first so that its pending fetches can complete.
	shutdownNodes([]*testNode{follower, nodes[0], nodes[1]})

	first := checkChain(t, follower, follower.store)
	assert.Len(t, first.Transactions, len(txs))

	stats := follower.GetStats()
	assert.Equal(t, "0", stats["candidates_built"])
	assert.Equal(t, "0", stats["votes_cast"])
	assert.NotEqual(t, "0", stats["advances_accepted"])
}

func TestNoWinnerWithoutProducers(t *testing.T) {
	privKeys, transports, peerSet := initPeers(t, 2, 1)

	// Only the second node runs, and it is not a producer.
	follower := newTestNode(t, privKeys[1], transports[1], peerSet, dfs.NewInmemStore(testAlg(t)))
	defer follower.Shutdown()

	go follower.Run(context.Background())

	require.Eventually(t, func() bool {
		return follower.GetStats()["rounds_without_winner"] != "0"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, genesis(t, follower), follower.Tip())
}

func TestShutdown(t *testing.T) {
	nodes := initNodes(t, 2, 2, func() dfs.Store { return dfs.NewInmemStore(testAlg(t)) })

	done := make(chan struct{})
	go func() {
		nodes[0].Run(context.Background())
		close(done)
	}()

	nodes[0].Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	assert.Equal(t, Shutdown, nodes[0].GetState())

	// Shutdown is idempotent
	nodes[0].Shutdown()

	// The peer can no longer reach the node.
	var resp net.FetchDeltaResponse
	err := nodes[1].trans.FetchDelta(nodes[0].trans.LocalAddr(), &net.FetchDeltaRequest{Hash: []byte("hash")}, &resp)
	assert.Error(t, err)

	nodes[1].Shutdown()
}

func TestRunStopsWithContext(t *testing.T) {
	nodes := initNodes(t, 1, 1, func() dfs.Store { return dfs.NewInmemStore(testAlg(t)) })
	defer shutdownNodes(nodes)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		nodes[0].Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewNodeRejectsBadGossipConfig(t *testing.T) {
	privKeys, transports, peerSet := initPeers(t, 2, 2)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.RelayFanout = 0
	genesis, err := conf.GenesisHash()
	require.NoError(t, err)

	signer := keys.NewECDSASigner(privKeys[0])

	_, err = NewNode(conf,
		signer,
		peers.NewSetProvider(peerSet, signer.PublicKeyHex()),
		mempool.NewMempool(10),
		dfs.NewInmemStore(testAlg(t)),
		delta.NewChainTracker(genesis),
		transports[0],
		nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validating gossip config")
}

func TestNewNodeRejectsEmptyProducerSet(t *testing.T) {
	privKeys, transports, peerSet := initPeers(t, 2, 0)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	genesis, err := conf.GenesisHash()
	require.NoError(t, err)

	signer := keys.NewECDSASigner(privKeys[0])

	_, err = NewNode(conf,
		signer,
		peers.NewSetProvider(peerSet, signer.PublicKeyHex()),
		mempool.NewMempool(10),
		dfs.NewInmemStore(testAlg(t)),
		delta.NewChainTracker(genesis),
		transports[0],
		nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), delta.ErrEmptyProducerSet.Error())
}
