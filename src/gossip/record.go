package gossip

import (
	"fmt"
	"math"
	"time"
)

// Config holds the constants of the protocol.
type Config struct {
	// OwnerFanout is the number of peers the originator sends to.
	OwnerFanout int
	// RelayFanout is the minimum number of peers a relay sends to.
	RelayFanout int
	// MinNetworkSize is the network size assumed for small networks.
	MinNetworkSize int
	// RecordTTL is the lifetime of a Record.
	RecordTTL time.Duration
	// MaxRecords bounds the number of live records.
	MaxRecords int
	// SendConcurrency bounds the number of concurrent sends of one broadcast.
	SendConcurrency int
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		OwnerFanout:     10,
		RelayFanout:     3,
		MinNetworkSize:  10,
		RecordTTL:       10 * time.Minute,
		MaxRecords:      100000,
		SendConcurrency: 10,
	}
}

// Validate rejects configurations for which RemainingRounds or Fanout are
// undefined.
func (c Config) Validate() error {
	if c.OwnerFanout < 1 {
		return fmt.Errorf("owner fanout must be at least 1, got %d", c.OwnerFanout)
	}
	if c.RelayFanout < 1 {
		return fmt.Errorf("relay fanout must be at least 1, got %d", c.RelayFanout)
	}
	if c.MinNetworkSize < 1 {
		return fmt.Errorf("min network size must be at least 1, got %d", c.MinNetworkSize)
	}
	if c.RecordTTL <= 0 {
		return fmt.Errorf("record ttl must be positive, got %v", c.RecordTTL)
	}
	if c.MaxRecords < 1 {
		return fmt.Errorf("max records must be at least 1, got %d", c.MaxRecords)
	}
	return nil
}

// Record tracks one message.
type Record struct {
	BroadcastCount        int
	ReceivedCount         int
	NetworkSizeAtCreation int

	owner   bool
	message *SignedMessage
}

// RemainingRounds is the ceiling of BroadcastCount for this record. It shrinks
// as BroadcastCount grows.
func (r *Record) RemainingRounds(conf Config) int {
	size := r.NetworkSizeAtCreation
	if size < conf.MinNetworkSize {
		size = conf.MinNetworkSize
	}

	spread := math.Max(1, float64(r.BroadcastCount)/float64(conf.RelayFanout))

	return int(math.Floor(math.Log(float64(size)/float64(conf.RelayFanout)) / spread))
}

// Exhausted is true once the record may not be broadcast anymore.
func (r *Record) Exhausted(conf Config) bool {
	return r.BroadcastCount >= r.RemainingRounds(conf)
}

// Fanout is the number of peers targeted by the next broadcast of the record,
// before capping by the number of available peers.
func (r *Record) Fanout(conf Config) int {
	if r.owner {
		return conf.OwnerFanout
	}
	remaining := r.RemainingRounds(conf)
	if remaining > conf.RelayFanout {
		return remaining
	}
	return conf.RelayFanout
}

// Owner is true if the local node created the message.
func (r *Record) Owner() bool {
	return r.owner
}
