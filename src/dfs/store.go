// Package dfs stores committed deltas by content hash, and the tip of the
// chain they form.
package dfs

import (
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
)

// Store is a content-addressed store of delta bodies.
type Store interface {
	// Put writes a body and returns its content hash.
	Put(body *delta.Delta) ([]byte, error)
	// Get returns the body stored under a content hash.
	Get(hash []byte) (*delta.Delta, error)
	// SetTip records the latest committed hash.
	SetTip(hash []byte) error
	// Tip returns the latest committed hash, or an Empty StoreErr.
	Tip() ([]byte, error)
	Close() error
}
