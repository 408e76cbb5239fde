// Package net implements the transports used by delta nodes to exchange gossip
// envelopes and to fetch committed deltas from each other.
//
// There are two implementations of the Transport interface:
//
// - Inmem: in-memory transport used for testing
//
// - TCP: communicating over plain TCP
//
// TCP
//
// Each request is framed by a byte that indicates the message type, followed by
// the msgpack encoded request. The response is an error string followed by the
// response object, both encoded using msgpack.
//
// To use a TCP transport, set the following configuration options:
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes. If
// BindAddr is a local address not reachable by other peers, it is usefull to
// set AdvertiseAddr to the reachable public address.
package net
