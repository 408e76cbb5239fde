// Package node implements the reactive component of a delta node.
//
// A Node composes the consensus primitives of the delta, gossip and cycle
// packages. It holds no algorithm of its own: it reacts to the phase changes
// emitted by the cycle scheduler and to the gossip messages delivered by the
// transport, and forwards them to the builder, the voter, the elector and the
// chain tracker.
//
// Cycle
//
// On every cycle, anchored on the chain tip read at Construction time:
//
//  - Construction/Producing: a producer builds its candidate, observes it in
//    its own voter, and broadcasts it.
//  - Campaigning/Producing: every producer takes its favourite candidate,
//    tallies it in its own elector, and broadcasts the vote.
//  - Voting/Producing: the producer whose candidate won the round commits the
//    body to the DFS, advances the chain tip, and broadcasts the new hash.
//  - Voting/Collating: the round is evicted from every cache.
//
// A round that fails at any step is abandoned. The next Construction phase
// retries with the same anchor if the tip did not move.
//
// Gossip
//
// Inbound envelopes are verified, recorded by the broadcaster, dispatched once
// to the handler of their kind, and relayed. Blocking work (DFS writes and
// gossip sends) runs in background goroutines so that the phase loop never
// waits on I/O.
package node
