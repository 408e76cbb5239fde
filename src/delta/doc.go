// Package delta implements the round logic of the delta consensus cycle.
//
// A round is anchored on the hash of the current chain tip, called the
// previous hash. During a round, every authorized producer builds a candidate
// delta from its mempool (Builder), every node picks a favourite among the
// candidates it has observed (Voter) and tallies the favourites gossiped by the
// other producers (Elector). The winning candidate is committed by its
// producer, and every node moves its chain pointer forward (ChainTracker).
//
// Producers are ranked for every round with a deterministic function of their
// ID and the previous hash (Ranker), so that all honest nodes agree on the
// order without communicating.
package delta
