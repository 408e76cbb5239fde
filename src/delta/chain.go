package delta

import (
	"bytes"
	"sync"
)

// ChainTracker holds the hash of the most recently committed delta. The tip
// only moves through TryAdvance.
type ChainTracker struct {
	mu  sync.RWMutex
	tip []byte
}

// NewChainTracker creates a ChainTracker anchored on genesis, or on a tip
// recovered from storage.
func NewChainTracker(genesis []byte) *ChainTracker {
	return &ChainTracker{tip: genesis}
}

// TryAdvance moves the tip to newHash if previousHash is the current tip. It
// returns false, without changing anything, otherwise.
func (c *ChainTracker) TryAdvance(previousHash, newHash []byte) bool {
	ok, _ := c.Advance(previousHash, newHash, nil)
	return ok
}

// Advance is TryAdvance with a persist hook. persist is called with the new
// tip while the tracker is locked, so concurrent advances persist their tips in
// the order the tips were set. A persist error is returned but the in-memory
// tip has moved regardless.
func (c *ChainTracker) Advance(previousHash, newHash []byte, persist func(tip []byte) error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !bytes.Equal(previousHash, c.tip) {
		return false, nil
	}
	c.tip = newHash

	if persist == nil {
		return true, nil
	}
	return true, persist(newHash)
}

// CurrentTip returns a copy of the tip.
func (c *ChainTracker) CurrentTip() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]byte, len(c.tip))
	copy(res, c.tip)
	return res
}
