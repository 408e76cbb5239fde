// Package deltanode assembles a complete delta node from a configuration.
//
// The Engine reads the private key and the peers.json file of the data
// directory, opens the store (Badger when persistence is enabled, in-memory
// otherwise), restores the chain tip, binds the TCP transport, and starts the
// node and its HTTP API.
//
// A data directory looks like:
//
//	datadir/
//	    priv_key        hex dump of the secp256k1 private key
//	    peers.json      peer set, with the producer flag of every peer
//	    deltanode.toml  optional configuration file read by the CLI
//	    badger_db/      committed deltas and chain tip, when --store is set
package deltanode
