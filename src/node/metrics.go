package node

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "deltanode"

// registerMetrics exposes the counters of a node and of its broadcaster as
// prometheus collectors. Values are read at collection time.
func registerMetrics(registry prometheus.Registerer, n *Node) error {
	counter := func(name, help string, f func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f()) })
	}

	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, f)
	}

	load := func(addr *uint64) func() uint64 {
		return func() uint64 { return atomic.LoadUint64(addr) }
	}

	collectors := []prometheus.Collector{
		counter("candidates_built_total", "Candidates built by this node.",
			load(&n.counters.candidatesBuilt)),
		counter("votes_cast_total", "Favourite votes cast by this node.",
			load(&n.counters.votesCast)),
		counter("rounds_committed_total", "Rounds committed by this node.",
			load(&n.counters.roundsCommitted)),
		counter("rounds_without_winner_total", "Rounds that ended without votes.",
			load(&n.counters.roundsWithoutWinner)),
		counter("chain_advances_accepted_total", "Chain advances accepted from other producers.",
			load(&n.counters.advancesAccepted)),
		counter("chain_advances_rejected_total", "Stale chain advances.",
			load(&n.counters.advancesRejected)),
		counter("messages_dropped_total", "Inbound gossip messages rejected.",
			load(&n.counters.messagesDropped)),
		counter("gossip_sent_total", "Gossip messages delivered to peers.",
			func() uint64 { return n.broadcaster.Stats().Sent }),
		counter("gossip_send_failures_total", "Gossip messages that could not be delivered.",
			func() uint64 { return n.broadcaster.Stats().Failed }),
		counter("gossip_received_total", "Gossip messages received from peers.",
			func() uint64 { return n.broadcaster.Stats().Received }),
		counter("gossip_suppressed_total", "Broadcasts suppressed by admission control.",
			func() uint64 { return n.broadcaster.Stats().Suppressed }),
		gauge("gossip_records", "Live broadcast records.",
			func() float64 { return float64(n.broadcaster.Len()) }),
		gauge("mempool_size", "Pending transactions.",
			func() float64 { return float64(n.mempool.Len()) }),
		gauge("peers", "Known peers, excluding this node.",
			func() float64 { return float64(len(n.peers.CurrentPeers())) }),
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}
