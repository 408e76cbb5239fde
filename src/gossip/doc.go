// Package gossip implements a bounded epidemic broadcast.
//
// Every logical message is identified by a correlation ID and tracked by a
// Record. The originator signs the message once and sends it to OwnerFanout
// random peers. A node that receives a message for the first time keeps the
// signed envelope and relays it unchanged to a number of peers that decays as
// the message spreads:
//
//	RemainingRounds = floor( ln(max(MinNetworkSize, N) / RelayFanout) / max(1, BroadcastCount / RelayFanout) )
//
// where N is the size of the peer set when the record was created. A message
// is only sent while BroadcastCount < RemainingRounds, so every message dies
// out on its own. Records expire after RecordTTL whatever their state.
package gossip
